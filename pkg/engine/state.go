package engine

import (
	"time"

	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
)

// Event identifies what caused a snapshot to be published.
type Event string

const (
	EventStart       Event = "START"
	EventRotate      Event = "ROTATE"
	EventFadeEnd     Event = "FADE_END"
	EventAccent      Event = "ACCENT"
	EventReconfigure Event = "RECONFIGURE"
)

// State defines the externally observable state of the engine and is
// used when publishing events. It is a value copy; consumers never
// share memory with the engine. Accent triplets format themselves as
// "R G B" strings via accent.RGB.
type State struct {
	CurrentImage  string
	PreviousImage string // set only while Fading
	Fading        bool
	// Crossfade is the length of the fade window in effect, so
	// renderers track timing changes without a second configuration
	// path.
	Crossfade time.Duration
	Accent    accent.Pair
}
