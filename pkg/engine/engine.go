// Package engine implements the background cycling engine. It owns the
// rotation index into the image sequence, the crossfade flag and the
// derived accent color pair, and publishes a fresh snapshot to every
// configured publisher whenever any of them change.
package engine

import (
	"context"
	"sync"
	"time"

	chlog "github.com/charmbracelet/log"

	"github.com/wamphlett/backdrop-pi-controller/config"
	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
)

// Publisher receives every published state snapshot together with the
// event that produced it.
type Publisher interface {
	Publish(event Event, state State)
}

// Extractor derives an accent pair from the image behind ref. It must
// never fail; fallbacks are the extractor's concern.
type Extractor interface {
	Extract(ctx context.Context, ref string) accent.Pair
}

// Prefetcher warms an image ref ahead of its rotation slot.
type Prefetcher interface {
	Prefetch(ref string)
}

// Engine cycles through the image sequence on a fixed interval.
type Engine struct {
	mu sync.Mutex

	images    []string
	interval  time.Duration
	crossfade time.Duration

	current  int
	previous int // -1 outside a transition
	fading   bool
	accent   accent.Pair

	// generation tags the accent sample targeting the active image;
	// results carrying an older generation are stale and dropped.
	generation uint64
	// fadeSeq tags the pending fade clear; a newer tick re-arms the
	// window and invalidates the older clear.
	fadeSeq uint64

	publishers []Publisher
	extractor  Extractor
	prefetcher Prefetcher

	running   bool
	done      chan struct{}
	fadeTimer *time.Timer
}

// New returns an engine cycling through images with the configured
// timing. The sequence is copied; the caller's slice is never
// mutated.
func New(cfg *config.Engine, images []string, opts ...Opt) *Engine {
	e := &Engine{
		images:    append([]string(nil), images...),
		interval:  cfg.Interval,
		crossfade: cfg.Crossfade,
		previous:  -1,
		accent:    accent.Default,
	}
	if e.interval <= 0 {
		e.interval = 20 * time.Second
	}
	if e.crossfade < 0 {
		e.crossfade = 0
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start begins the rotation schedule. The initial snapshot is
// published immediately, the active image is sampled for accent
// colors and the upcoming image starts loading.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.startScheduleLocked()

	ref := e.ref(e.current)
	sampleNeeded := ref != "" && e.extractor != nil
	var gen uint64
	if sampleNeeded {
		e.generation++
		gen = e.generation
	}
	next := e.nextRef()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(EventStart, snap)
	if sampleNeeded {
		go e.sample(gen, ref)
	}
	if e.prefetcher != nil && next != "" {
		e.prefetcher.Prefetch(next)
	}
}

// Stop cancels the rotation schedule and any pending fade clear. Any
// transition in progress is considered complete, so a later Start
// begins from a clean snapshot. It is safe to call any number of
// times. In-flight accent extractions are left to finish; their
// results land stale and are dropped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.done)
	e.previous = -1
	e.fading = false
	e.fadeSeq++
	if e.fadeTimer != nil {
		e.fadeTimer.Stop()
		e.fadeTimer = nil
	}
	e.generation++
}

// Reconfigure replaces the image sequence and timing and recreates the
// rotation schedule. The phase of the next tick resets relative to
// wall clock: configuration changes resynchronize the cycle rather
// than preserving elapsed time since the last tick. Any transition in
// progress is considered complete. A non-positive interval or a
// negative crossfade keeps the current value.
func (e *Engine) Reconfigure(images []string, interval, crossfade time.Duration) {
	e.mu.Lock()

	oldRef := e.ref(e.current)

	e.images = append([]string(nil), images...)
	if interval > 0 {
		e.interval = interval
	}
	if crossfade >= 0 {
		e.crossfade = crossfade
	}

	e.current = e.current % max(1, len(e.images))
	e.previous = -1
	e.fading = false
	e.fadeSeq++
	if e.fadeTimer != nil {
		e.fadeTimer.Stop()
		e.fadeTimer = nil
	}

	if e.running {
		close(e.done)
		e.startScheduleLocked()
	}

	newRef := e.ref(e.current)
	sampleNeeded := newRef != "" && newRef != oldRef && e.extractor != nil
	var gen uint64
	if sampleNeeded {
		e.generation++
		gen = e.generation
	}
	next := e.nextRef()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(EventReconfigure, snap)
	if sampleNeeded {
		go e.sample(gen, newRef)
	}
	if e.prefetcher != nil && next != "" {
		e.prefetcher.Prefetch(next)
	}
}

// Snapshot returns the latest composed state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// startScheduleLocked creates a fresh ticker loop. Callers must hold
// e.mu.
func (e *Engine) startScheduleLocked() {
	e.done = make(chan struct{})
	ticker := time.NewTicker(e.interval)
	go e.run(e.done, ticker)
}

func (e *Engine) run(done chan struct{}, ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			e.tick(done)
		case <-done:
			ticker.Stop()
			return
		}
	}
}

// tick advances the rotation: the outgoing index becomes the previous
// index, the fade window opens and its close is scheduled. The
// upcoming image starts loading and a fresh accent sample is requested
// when the active image changed.
func (e *Engine) tick(done chan struct{}) {
	e.mu.Lock()
	if !e.running || done != e.done {
		// the schedule was stopped or replaced while this tick was
		// being delivered
		e.mu.Unlock()
		return
	}

	oldRef := e.ref(e.current)
	e.previous = e.current
	e.current = (e.current + 1) % max(1, len(e.images))

	if e.crossfade > 0 {
		e.fading = true
		e.fadeSeq++
		seq := e.fadeSeq
		if e.fadeTimer != nil {
			e.fadeTimer.Stop()
		}
		e.fadeTimer = time.AfterFunc(e.crossfade, func() { e.clearFade(seq) })
	} else {
		// a zero crossfade is an instant cut; no fade window opens
		e.fading = false
		e.previous = -1
	}

	newRef := e.ref(e.current)
	sampleNeeded := newRef != "" && newRef != oldRef && e.extractor != nil
	var gen uint64
	if sampleNeeded {
		e.generation++
		gen = e.generation
	}
	next := e.nextRef()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(EventRotate, snap)
	if sampleNeeded {
		go e.sample(gen, newRef)
	}
	if e.prefetcher != nil && next != "" {
		e.prefetcher.Prefetch(next)
	}
}

// clearFade closes the fade window opened by the most recent tick. A
// tick delivered after this clear was scheduled re-arms the window and
// turns this invocation into a no-op.
func (e *Engine) clearFade(seq uint64) {
	e.mu.Lock()
	if !e.running || seq != e.fadeSeq || !e.fading {
		e.mu.Unlock()
		return
	}
	e.fading = false
	e.previous = -1
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(EventFadeEnd, snap)
}

// sample runs an accent extraction for ref and applies the result only
// if ref is still the active image when the result arrives.
func (e *Engine) sample(gen uint64, ref string) {
	pair := e.extractor.Extract(context.Background(), ref)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		chlog.Debug("dropping stale accent sample", "ref", ref)
		return
	}
	e.accent = pair
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.publish(EventAccent, snap)
}

// ref returns the image at index i. Callers must hold e.mu.
func (e *Engine) ref(i int) string {
	if i < 0 || i >= len(e.images) {
		return ""
	}
	return e.images[i]
}

// nextRef returns the image scheduled after the active one. Callers
// must hold e.mu.
func (e *Engine) nextRef() string {
	if len(e.images) == 0 {
		return ""
	}
	return e.images[(e.current+1)%len(e.images)]
}

// snapshotLocked composes the published state. Callers must hold e.mu.
func (e *Engine) snapshotLocked() State {
	s := State{
		CurrentImage: e.ref(e.current),
		Fading:       e.fading,
		Crossfade:    e.crossfade,
		Accent:       e.accent,
	}
	if e.fading {
		s.PreviousImage = e.ref(e.previous)
	}
	return s
}

func (e *Engine) publish(event Event, state State) {
	chlog.Debug("publishing state", "event", event, "image", state.CurrentImage, "fading", state.Fading)
	for _, p := range e.publishers {
		p.Publish(event, state)
	}
}
