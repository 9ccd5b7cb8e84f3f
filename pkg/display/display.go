package display

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"time"

	chlog "github.com/charmbracelet/log"
	fb "github.com/gonutz/framebuffer"
	xdraw "golang.org/x/image/draw"

	"github.com/wamphlett/backdrop-pi-controller/config"
	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
	"github.com/wamphlett/backdrop-pi-controller/pkg/engine"
)

const (
	frameRate   = 30
	loadTimeout = 10 * time.Second

	// scaledCapacity bounds the cache of screen-sized frames; a
	// 1080p RGBA frame is around 8MB
	scaledCapacity = 4
)

// Loader provides decoded images for refs.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Display paints engine state to the Linux framebuffer, crossfading
// between the previous and current images while a transition is open.
// Images which cannot be loaded render as a solid fill of the primary
// accent color.
type Display struct {
	dev    *fb.Device
	canvas *image.RGBA
	loader Loader

	states  chan engine.State
	done    chan struct{}
	stopped chan struct{}

	mu     sync.Mutex
	scaled map[string]*image.RGBA
}

// New opens the framebuffer device and starts the render loop.
func New(cfg *config.Display, loader Loader) (*Display, error) {
	dev, err := fb.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open framebuffer %s: %w", cfg.Device, err)
	}

	d := &Display{
		dev:     dev,
		canvas:  image.NewRGBA(dev.Bounds()),
		loader:  loader,
		states:  make(chan engine.State, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		scaled:  map[string]*image.RGBA{},
	}
	go d.run()
	return d, nil
}

// Publish hands the latest state to the render loop. Only the newest
// state matters; an unrendered older one is dropped.
func (d *Display) Publish(_ engine.Event, state engine.State) {
	for {
		select {
		case d.states <- state:
			return
		default:
			select {
			case <-d.states:
			default:
			}
		}
	}
}

// Close stops the render loop and releases the framebuffer.
func (d *Display) Close() {
	close(d.done)
	<-d.stopped
	if d.dev != nil {
		d.dev.Close()
	}
}

func (d *Display) run() {
	defer close(d.stopped)

	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	var (
		state     engine.State
		haveState bool
		fadeStart time.Time
		dirty     bool
	)

	for {
		select {
		case <-d.done:
			return
		case next := <-d.states:
			if next.Fading && (!haveState || !state.Fading || next.CurrentImage != state.CurrentImage) {
				fadeStart = time.Now()
			}
			state = next
			haveState = true
			dirty = true
		case <-ticker.C:
			if !haveState {
				continue
			}
			if state.Fading {
				d.paintBlend(state, progress(time.Since(fadeStart), state.Crossfade))
				d.blit()
				continue
			}
			if dirty {
				d.paint(state)
				d.blit()
				dirty = false
			}
		}
	}
}

// progress maps elapsed fade time to blend opacity, using the fade
// window carried in the state so timing overrides apply to fades
// already on screen.
func progress(elapsed, crossfade time.Duration) float64 {
	if crossfade <= 0 {
		return 1
	}
	return math.Min(1, float64(elapsed)/float64(crossfade))
}

// paint draws the current image over the whole canvas.
func (d *Display) paint(state engine.State) {
	d.drawImage(state.CurrentImage, state.Accent.Primary)
}

// paintBlend draws the previous image and composites the current one
// over it at opacity t, where t runs from 0 to 1 across the fade
// window.
func (d *Display) paintBlend(state engine.State, t float64) {
	d.drawImage(state.PreviousImage, state.Accent.Primary)

	alpha := image.NewUniform(color.Alpha{A: uint8(math.Round(t * 255))})
	if cur := d.image(state.CurrentImage); cur != nil {
		draw.DrawMask(d.canvas, d.canvas.Bounds(), cur, cur.Bounds().Min, alpha, image.Point{}, draw.Over)
		return
	}
	fill := image.NewUniform(fillColor(state.Accent.Primary))
	draw.DrawMask(d.canvas, d.canvas.Bounds(), fill, image.Point{}, alpha, image.Point{}, draw.Over)
}

// drawImage paints ref across the canvas, falling back to a solid
// accent fill when the image cannot be loaded.
func (d *Display) drawImage(ref string, fallback accent.RGB) {
	if img := d.image(ref); img != nil {
		draw.Draw(d.canvas, d.canvas.Bounds(), img, img.Bounds().Min, draw.Src)
		return
	}
	draw.Draw(d.canvas, d.canvas.Bounds(), image.NewUniform(fillColor(fallback)), image.Point{}, draw.Src)
}

// image returns ref scaled to the canvas size, or nil when it cannot
// be loaded. Results are cached either way so a broken ref is not
// retried on every frame.
func (d *Display) image(ref string) *image.RGBA {
	if ref == "" {
		return nil
	}

	d.mu.Lock()
	cached, ok := d.scaled[ref]
	d.mu.Unlock()
	if ok {
		return cached
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	var scaled *image.RGBA
	src, err := d.loader.Load(ctx, ref)
	if err != nil {
		chlog.Warn("failed to load image for display", "ref", ref, "error", err)
	} else {
		scaled = image.NewRGBA(d.canvas.Bounds())
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}

	d.mu.Lock()
	if len(d.scaled) >= scaledCapacity {
		for key := range d.scaled {
			delete(d.scaled, key)
			break
		}
	}
	d.scaled[ref] = scaled
	d.mu.Unlock()
	return scaled
}

// blit copies the canvas to the framebuffer device.
func (d *Display) blit() {
	if d.dev == nil {
		return
	}
	draw.Draw(d.dev, d.dev.Bounds(), d.canvas, d.canvas.Bounds().Min, draw.Src)
}

func fillColor(c accent.RGB) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}
}
