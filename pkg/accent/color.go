package accent

import (
	"fmt"
	"math"
)

// RGB is an 8-bit color triplet.
type RGB struct {
	R, G, B uint8
}

// String formats the triplet as space-separated components, ready to
// be dropped into a styling expression or a published payload.
func (c RGB) String() string {
	return fmt.Sprintf("%d %d %d", c.R, c.G, c.B)
}

// Pair holds the primary accent color and the lighter secondary
// derived from it.
type Pair struct {
	Primary   RGB
	Secondary RGB
}

// Default is the pair in effect before the first sample completes.
var Default = Pair{
	Primary:   RGB{85, 37, 131},
	Secondary: RGB{253, 185, 39},
}

// fallbackMean stands in for the sampled mean when an image cannot be
// sampled at all. It runs through the same boost/derive pipeline as a
// real sample.
var fallbackMean = RGB{85, 37, 131}

const (
	boostFactor   = 1.05
	lightenFactor = 1.25
	lightenOffset = 20
)

// Lighten derives the secondary triplet from a primary using a fixed
// affine transform on each channel.
func Lighten(c RGB) RGB {
	return RGB{
		R: clampByte(float64(c.R)*lightenFactor + lightenOffset),
		G: clampByte(float64(c.G)*lightenFactor + lightenOffset),
		B: clampByte(float64(c.B)*lightenFactor + lightenOffset),
	}
}

// boost applies the saturation boost to a sampled mean.
func boost(c RGB) RGB {
	return RGB{
		R: clampByte(float64(c.R) * boostFactor),
		G: clampByte(float64(c.G) * boostFactor),
		B: clampByte(float64(c.B) * boostFactor),
	}
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
