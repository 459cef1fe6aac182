// Package filter implements the image transforms applied before decode
// attempts: tone mapping, smoothing, edge and threshold operators.
//
// Every kernel mutates its buffer in place (allocating at most one scratch
// buffer of the same size) and preserves the buffer dimensions. Kernels with
// a neighborhood window leave the outermost ring of width equal to the kernel
// radius untouched instead of padding; finder patterns are rarely at the
// image edge, and the downstream decoders tolerate the ring.
package filter

import (
	"fmt"

	"github.com/inchinet/qrscanner/internal/pixel"
)

// Kind identifies one of the filter kernels.
type Kind int

const (
	KindGrayscale Kind = iota
	KindContrastStretch
	KindSharpen
	KindGaussianBlur
	KindMedian
	KindBilateral
	KindSobel
	KindAdaptiveThreshold
	KindOtsuThreshold
	KindEqualizeHist
	KindFixedThreshold
)

// String returns the kernel name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindGrayscale:
		return "grayscale"
	case KindContrastStretch:
		return "contrast"
	case KindSharpen:
		return "sharpen"
	case KindGaussianBlur:
		return "gaussian-blur"
	case KindMedian:
		return "median"
	case KindBilateral:
		return "bilateral"
	case KindSobel:
		return "sobel"
	case KindAdaptiveThreshold:
		return "adaptive-threshold"
	case KindOtsuThreshold:
		return "otsu"
	case KindEqualizeHist:
		return "equalize"
	case KindFixedThreshold:
		return "fixed-threshold"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Step is one configured kernel in a filter chain. The zero values of the
// parameter fields are replaced by the documented defaults on Apply.
type Step struct {
	Kind      Kind
	Factor    float64 // contrast stretch factor (default 1.5)
	Threshold uint8   // fixed threshold luma cut
	BlockSize int     // adaptive threshold half-window (default 11)
	C         int     // adaptive threshold offset (default 8)
}

// Grayscale converts to BT.601 luma written into all color channels.
func Grayscale() Step { return Step{Kind: KindGrayscale} }

// ContrastStretch scales channels away from mid-gray by the given factor.
func ContrastStretch(factor float64) Step {
	return Step{Kind: KindContrastStretch, Factor: factor}
}

// Sharpen applies the 3x3 kernel [0,-1,0; -1,5,-1; 0,-1,0].
func Sharpen() Step { return Step{Kind: KindSharpen} }

// GaussianBlur applies the fixed 3x3 kernel [1,2,1; 2,4,2; 1,2,1]/16.
func GaussianBlur() Step { return Step{Kind: KindGaussianBlur} }

// Median replaces each sample with the median of its 3x3 neighborhood.
func Median() Step { return Step{Kind: KindMedian} }

// Bilateral applies a 5x5 edge-preserving blur with sigma 50 in both the
// spatial and range domains.
func Bilateral() Step { return Step{Kind: KindBilateral} }

// Sobel writes the gradient magnitude into all color channels.
func Sobel() Step { return Step{Kind: KindSobel} }

// AdaptiveThreshold binarizes against the local window mean minus c.
func AdaptiveThreshold(blockSize, c int) Step {
	return Step{Kind: KindAdaptiveThreshold, BlockSize: blockSize, C: c}
}

// OtsuThreshold binarizes at the global threshold maximizing between-class
// variance.
func OtsuThreshold() Step { return Step{Kind: KindOtsuThreshold} }

// EqualizeHist remaps intensities through the cumulative histogram.
func EqualizeHist() Step { return Step{Kind: KindEqualizeHist} }

// FixedThreshold binarizes luma at the given constant.
func FixedThreshold(v uint8) Step {
	return Step{Kind: KindFixedThreshold, Threshold: v}
}

// Apply runs the kernel on the buffer in place.
func (s Step) Apply(buf *pixel.Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("filter %s: %w", s.Kind, err)
	}
	switch s.Kind {
	case KindGrayscale:
		grayscale(buf)
	case KindContrastStretch:
		factor := s.Factor
		if factor == 0 {
			factor = 1.5
		}
		contrastStretch(buf, factor)
	case KindSharpen:
		convolve3x3(buf, sharpenKernel, 1)
	case KindGaussianBlur:
		convolve3x3(buf, gaussianKernel, 16)
	case KindMedian:
		median3x3(buf)
	case KindBilateral:
		bilateral(buf, 2, 50, 50)
	case KindSobel:
		sobel(buf)
	case KindAdaptiveThreshold:
		block, c := s.BlockSize, s.C
		if block == 0 {
			block = 11
		}
		if c == 0 {
			c = 8
		}
		adaptiveThreshold(buf, block, c)
	case KindOtsuThreshold:
		otsuThreshold(buf)
	case KindEqualizeHist:
		equalizeHist(buf)
	case KindFixedThreshold:
		fixedThreshold(buf, s.Threshold)
	default:
		return fmt.Errorf("filter: unknown kind %d", int(s.Kind))
	}
	return nil
}

// Chain is an ordered sequence of filter steps.
type Chain []Step

// Apply runs each step in order, stopping at the first error.
func (c Chain) Apply(buf *pixel.Buffer) error {
	for _, step := range c {
		if err := step.Apply(buf); err != nil {
			return err
		}
	}
	return nil
}

// String renders the chain for diagnostics, e.g. "grayscale>otsu".
func (c Chain) String() string {
	if len(c) == 0 {
		return "none"
	}
	out := ""
	for i, step := range c {
		if i > 0 {
			out += ">"
		}
		out += step.Kind.String()
	}
	return out
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
