package accent

import (
	"context"
	"image"

	xdraw "golang.org/x/image/draw"
)

const (
	// rasterSize bounds the sampling cost regardless of the source
	// resolution.
	rasterSize = 64
	// alphaFloor is 10% opacity; pixels below it do not contribute to
	// the mean.
	alphaFloor = 26
)

// Loader produces a decoded image for an opaque ref.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Extractor derives accent color pairs from images.
type Extractor struct {
	loader Loader
}

// NewExtractor returns an Extractor reading images through loader.
func NewExtractor(loader Loader) *Extractor {
	return &Extractor{loader: loader}
}

// Extract samples the image behind ref and returns its accent pair.
// It never fails: a load error, an empty image or a fully transparent
// image all resolve to the fallback pair.
func (e *Extractor) Extract(ctx context.Context, ref string) Pair {
	mean := fallbackMean
	if img, err := e.loader.Load(ctx, ref); err == nil {
		if m, ok := meanColor(img); ok {
			mean = m
		}
	}
	primary := boost(mean)
	return Pair{Primary: primary, Secondary: Lighten(primary)}
}

// meanColor scales img into the fixed raster and averages the
// channels of every pixel above the opacity floor. ok is false when
// no pixel contributed.
func meanColor(img image.Image) (RGB, bool) {
	if img == nil || img.Bounds().Empty() {
		return RGB{}, false
	}

	raster := image.NewNRGBA(image.Rect(0, 0, rasterSize, rasterSize))
	xdraw.ApproxBiLinear.Scale(raster, raster.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	var rSum, gSum, bSum, count uint64
	pix := raster.Pix
	for i := 0; i < len(pix); i += 4 {
		if pix[i+3] < alphaFloor {
			continue
		}
		rSum += uint64(pix[i])
		gSum += uint64(pix[i+1])
		bSum += uint64(pix[i+2])
		count++
	}
	if count == 0 {
		return RGB{}, false
	}

	return RGB{
		R: uint8(rSum / count),
		G: uint8(gSum / count),
		B: uint8(bSum / count),
	}, true
}
