package led

import (
	"fmt"
	"math"
	"sync"

	chlog "github.com/charmbracelet/log"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/wamphlett/backdrop-pi-controller/config"
	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
	"github.com/wamphlett/backdrop-pi-controller/pkg/engine"
)

const (
	// pwmFreq / cycleLength gives a 300Hz output, fast enough to
	// avoid visible flicker
	pwmFreq     = 76800
	cycleLength = 256
)

// Light drives an RGB LED over hardware PWM, mirroring the primary
// accent color of the active image.
type Light struct {
	mu     sync.Mutex
	pins   [3]rpio.Pin
	sensor *Sensor
	closed bool
}

// Opt is a configuration option for the Light
type Opt func(*Light)

// WithSensor scales the LED brightness by ambient light
func WithSensor(s *Sensor) Opt {
	return func(l *Light) {
		l.sensor = s
	}
}

// New maps the configured GPIO pins and returns a Light
func New(cfg *config.LED, opts ...Opt) (*Light, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO memory range: %w", err)
	}

	l := &Light{
		pins: [3]rpio.Pin{
			rpio.Pin(cfg.RedPin),
			rpio.Pin(cfg.GreenPin),
			rpio.Pin(cfg.BluePin),
		},
	}
	for _, pin := range l.pins {
		pin.Mode(rpio.Pwm)
		pin.Freq(pwmFreq)
		pin.DutyCycle(0, cycleLength)
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Publish updates the LED to the accent color carried by the state
func (l *Light) Publish(_ engine.Event, state engine.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	brightness := 1.0
	if l.sensor != nil {
		brightness = l.sensor.Brightness()
	}

	for i, duty := range duties(state.Accent.Primary, brightness) {
		l.pins[i].DutyCycle(duty, cycleLength)
	}
}

// Close turns the LED off and releases the GPIO memory range
func (l *Light) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true

	for _, pin := range l.pins {
		pin.DutyCycle(0, cycleLength)
	}
	if err := rpio.Close(); err != nil {
		chlog.Error("failed to release GPIO memory range", "error", err)
	}
}

// duties converts a color and brightness to per-channel PWM duty
// lengths. Brightness outside 0..1 is clamped.
func duties(c accent.RGB, brightness float64) [3]uint32 {
	brightness = math.Max(0, math.Min(1, brightness))
	scale := func(v uint8) uint32 {
		return uint32(math.Round(float64(v) / 255.0 * brightness * cycleLength))
	}
	return [3]uint32{scale(c.R), scale(c.G), scale(c.B)}
}
