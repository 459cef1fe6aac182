// Package resample rescales source images into pixel buffers ahead of
// filtering and decoding.
package resample

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/inchinet/qrscanner/internal/pixel"
)

// ErrInvalidScale is returned for scale factors that cannot produce an image.
var ErrInvalidScale = errors.New("resample: scale factor must be positive")

// ToScale resamples the source image to floor(W*s) x floor(H*s) and returns
// the result as a fresh pixel buffer. Output dimensions are clamped to a
// minimum of 1x1 so that extreme downscales stay decodable inputs rather
// than errors; a non-positive scale is rejected.
func ToScale(src image.Image, scale float64) (*pixel.Buffer, error) {
	if src == nil {
		return nil, fmt.Errorf("resample: source image is nil")
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("resample: zero-area source %dx%d", bounds.Dx(), bounds.Dy())
	}

	if scale == 1.0 {
		return pixel.FromImage(src)
	}

	width := int(math.Floor(float64(bounds.Dx()) * scale))
	height := int(math.Floor(float64(bounds.Dy()) * scale))
	width = max(width, 1)
	height = max(height, 1)

	resized := imaging.Resize(src, width, height, imaging.Lanczos)
	return pixel.FromImage(resized)
}

// ScaleRGBA rescales an image into a new RGBA of the given dimensions using
// Catmull-Rom interpolation. Used on the live-scan path where frames are
// downscaled before the fast decode.
func ScaleRGBA(src image.Image, width, height int) (*image.RGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("resample: source image is nil")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resample: invalid target dimensions %dx%d", width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// FitWithin returns dimensions scaled down to fit within maxDim while
// preserving aspect ratio; inputs already within the limit pass through.
func FitWithin(width, height, maxDim int) (int, int) {
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return width, height
	}
	scale := float64(maxDim) / float64(max(width, height))
	return max(int(float64(width)*scale), 1), max(int(float64(height)*scale), 1)
}
