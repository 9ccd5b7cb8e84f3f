package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Playlist is the ordered image rotation list read from the playlist
// file. Timing fields are duration strings and override the
// environment when set.
type Playlist struct {
	Images    []string `yaml:"images"`
	Interval  string   `yaml:"interval,omitempty"`
	Crossfade string   `yaml:"crossfade,omitempty"`
}

// ReadPlaylist loads the playlist file.
func ReadPlaylist(path string) (Playlist, error) {
	var p Playlist
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse playlist %s: %w", path, err)
	}
	return p, nil
}

// WritePlaylist persists a playlist to file.
func WritePlaylist(path string, p Playlist) error {
	b, err := yaml.Marshal(&p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Timing resolves the playlist timing overrides against the
// environment configured defaults. Unparseable overrides keep the
// defaults.
func (p Playlist) Timing(defaults *Engine) (interval, crossfade time.Duration) {
	interval, crossfade = defaults.Interval, defaults.Crossfade
	if p.Interval != "" {
		if d, err := time.ParseDuration(p.Interval); err == nil && d > 0 {
			interval = d
		} else {
			chlog.Warn("ignoring invalid playlist interval", "value", p.Interval)
		}
	}
	if p.Crossfade != "" {
		if d, err := time.ParseDuration(p.Crossfade); err == nil && d >= 0 {
			crossfade = d
		} else {
			chlog.Warn("ignoring invalid playlist crossfade", "value", p.Crossfade)
		}
	}
	return interval, crossfade
}

// WatchPlaylist sets a fsnotify watcher on the playlist file and
// invokes onChange with the reloaded playlist once edits settle. The
// returned stop function closes the watcher.
func WatchPlaylist(path string, onChange func(Playlist)) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	const debounceDelay = 350 * time.Millisecond

	go func() {
		reload := func() {
			// editors tend to replace the file rather than write in
			// place; wait for the new one to land
			for i := 0; i < 10; i++ {
				if _, err := os.Stat(abs); err == nil {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}

			chlog.Info("playlist changed", "path", abs)
			p, err := ReadPlaylist(abs)
			if err != nil {
				chlog.Error("failed to reload playlist", "err", err)
				return
			}
			onChange(p)
		}

		var timer *time.Timer
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					if timer == nil {
						timer = time.AfterFunc(debounceDelay, reload)
					} else {
						timer.Stop()
						timer.Reset(debounceDelay)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				chlog.Error("playlist watcher error", "err", err)
			}
		}
	}()

	return func() { w.Close() }, nil
}
