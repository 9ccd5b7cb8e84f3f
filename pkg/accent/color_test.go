package accent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRGBString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "85 37 131", RGB{85, 37, 131}.String())
	require.Equal(t, "0 0 0", RGB{}.String())
	require.Equal(t, "255 255 255", RGB{255, 255, 255}.String())
}

func TestDefaultPair(t *testing.T) {
	t.Parallel()

	require.Equal(t, "85 37 131", Default.Primary.String())
	require.Equal(t, "253 185 39", Default.Secondary.String())
}

func TestLighten(t *testing.T) {
	t.Parallel()

	// c' = clamp(c*1.25+20), per channel
	require.Equal(t, RGB{20, 20, 20}, Lighten(RGB{0, 0, 0}))
	require.Equal(t, RGB{255, 255, 255}, Lighten(RGB{204, 204, 204}))
	require.Equal(t, RGB{255, 255, 255}, Lighten(RGB{255, 255, 255}))
	require.Equal(t, RGB{145, 70, 35}, Lighten(RGB{100, 40, 12}))
}

func TestBoostClamps(t *testing.T) {
	t.Parallel()

	require.Equal(t, RGB{255, 255, 255}, boost(RGB{255, 255, 255}))
	require.Equal(t, RGB{0, 0, 0}, boost(RGB{0, 0, 0}))
	require.Equal(t, RGB{89, 39, 138}, boost(fallbackMean))
}
