package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/wamphlett/backdrop-pi-controller/config"
	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
	"github.com/wamphlett/backdrop-pi-controller/pkg/display"
	"github.com/wamphlett/backdrop-pi-controller/pkg/engine"
	"github.com/wamphlett/backdrop-pi-controller/pkg/led"
	"github.com/wamphlett/backdrop-pi-controller/pkg/mqtt"
	"github.com/wamphlett/backdrop-pi-controller/pkg/source"
)

func main() {
	_ = godotenv.Load()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	cfg := config.New()
	initLogger(cfg.LogLevel)

	images, interval, crossfade := loadPlaylist(cfg)

	library := source.New()
	opts := []engine.Opt{
		engine.WithExtractor(accent.NewExtractor(library)),
		engine.WithPrefetcher(library),
	}

	if cfg.MQTT.Enabled {
		publisher, err := mqtt.New(cfg.MQTT)
		if err != nil {
			chlog.Fatal("failed to connect to MQTT broker", "error", err)
		}
		defer publisher.Close()
		opts = append(opts, engine.WithPublisher(publisher))
	}

	if cfg.Display.Enabled {
		d, err := display.New(cfg.Display, library)
		if err != nil {
			chlog.Fatal("failed to open display", "error", err)
		}
		defer d.Close()
		opts = append(opts, engine.WithPublisher(d))
	}

	if cfg.LED.Enabled {
		var ledOpts []led.Opt
		if cfg.LED.SensorEnabled {
			sensor, err := led.NewSensor(cfg.LED.SensorBus)
			if err != nil {
				chlog.Fatal("failed to open light sensor", "error", err)
			}
			sensor.Start()
			defer sensor.Stop()
			ledOpts = append(ledOpts, led.WithSensor(sensor))
		}

		light, err := led.New(cfg.LED, ledOpts...)
		if err != nil {
			chlog.Fatal("failed to open LED", "error", err)
		}
		defer light.Close()
		opts = append(opts, engine.WithPublisher(light))
	}

	e := engine.New(&config.Engine{Interval: interval, Crossfade: crossfade}, images, opts...)
	e.Start()

	stopWatching, err := config.WatchPlaylist(cfg.Playlist, func(playlist config.Playlist) {
		interval, crossfade := playlist.Timing(cfg.Engine)
		e.Reconfigure(playlist.Images, interval, crossfade)
	})
	if err != nil {
		chlog.Warn("failed to watch playlist", "path", cfg.Playlist, "error", err)
	} else {
		defer stopWatching()
	}

	// wait for shutdown
	<-signals

	e.Stop()
}

// loadPlaylist resolves the image sequence and timing, keeping the
// environment timing when the playlist file is unreadable.
func loadPlaylist(cfg *config.Config) ([]string, time.Duration, time.Duration) {
	playlist, err := config.ReadPlaylist(cfg.Playlist)
	if err != nil {
		chlog.Warn("failed to read playlist, starting with an empty sequence", "path", cfg.Playlist, "error", err)
		return nil, cfg.Engine.Interval, cfg.Engine.Crossfade
	}
	interval, crossfade := playlist.Timing(cfg.Engine)
	return playlist.Images, interval, crossfade
}

func initLogger(level string) {
	l := chlog.New(os.Stderr)
	l.SetReportTimestamp(true)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l.SetLevel(chlog.DebugLevel)
	case "warn":
		l.SetLevel(chlog.WarnLevel)
	case "error":
		l.SetLevel(chlog.ErrorLevel)
	default:
		l.SetLevel(chlog.InfoLevel)
	}
	chlog.SetDefault(l)
}
