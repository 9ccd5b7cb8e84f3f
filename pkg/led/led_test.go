package led

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wamphlett/backdrop-pi-controller/pkg/accent"
)

func TestDuties(t *testing.T) {
	t.Parallel()
	require.Equal(t, [3]uint32{cycleLength, cycleLength, cycleLength}, duties(accent.RGB{R: 255, G: 255, B: 255}, 1))
	require.Equal(t, [3]uint32{0, 0, 0}, duties(accent.RGB{}, 1))
	require.Equal(t, [3]uint32{256, 0, 129}, duties(accent.RGB{R: 255, B: 128}, 1))
	require.Equal(t, [3]uint32{128, 128, 128}, duties(accent.RGB{R: 255, G: 255, B: 255}, 0.5))
}

func TestDutiesClampsBrightness(t *testing.T) {
	t.Parallel()
	full := accent.RGB{R: 255, G: 255, B: 255}
	require.Equal(t, duties(full, 1), duties(full, 2))
	require.Equal(t, [3]uint32{0, 0, 0}, duties(full, -1))
}

func TestBrightnessAveragesAndFloors(t *testing.T) {
	t.Parallel()
	s := &Sensor{currentSample: &sample{}, last: 1}

	// no samples yet keeps the previous level
	require.Equal(t, 1.0, s.Brightness())

	s.currentSample.sum = 1.2
	s.currentSample.count = 3
	require.InDelta(t, 0.4, s.Brightness(), 1e-9)

	// the window drains on read
	require.InDelta(t, 0.4, s.Brightness(), 1e-9)

	s.currentSample.sum = 0.01
	s.currentSample.count = 1
	require.Equal(t, minBrightness, s.Brightness())
}

func TestSampleResult(t *testing.T) {
	t.Parallel()
	s := &sample{}
	_, ok := s.result()
	require.False(t, ok)

	s.sum = 1.5
	s.count = 2
	level, ok := s.result()
	require.True(t, ok)
	require.InDelta(t, 0.75, level, 1e-9)
}
