package detect

import (
	"fmt"

	"github.com/inchinet/qrscanner/internal/decode"
	"github.com/inchinet/qrscanner/internal/filter"
)

// Strategy is one (resample, filter chain, decoder) configuration tried
// against the source image. Strategies are immutable once the detector is
// built; each one resamples fresh from the original source, so strategies are
// independent and order only decides which succeeds first.
type Strategy struct {
	Name    string // diagnostic only
	Scale   float64
	Filters filter.Chain
	Engine  decode.Engine
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s (scale=%g, filters=%s, engine=%s)", s.Name, s.Scale, s.Filters, s.Engine)
}

// DefaultStrategies returns the fixed ordered strategy list. The order is a
// deliberate latency/likelihood trade-off: cheap and likely transforms first.
func DefaultStrategies() []Strategy {
	grayContrast := filter.Chain{filter.Grayscale(), filter.ContrastStretch(1.5)}
	return []Strategy{
		{Name: "original", Scale: 1.0, Engine: decode.EngineFast},
		{Name: "threshold-180", Scale: 1.0, Filters: filter.Chain{filter.FixedThreshold(180)}, Engine: decode.EngineFast},
		{Name: "threshold-210", Scale: 1.0, Filters: filter.Chain{filter.FixedThreshold(210)}, Engine: decode.EngineFast},
		{Name: "threshold-140", Scale: 1.0, Filters: filter.Chain{filter.FixedThreshold(140)}, Engine: decode.EngineFast},
		{Name: "gray-contrast-half", Scale: 0.5, Filters: grayContrast, Engine: decode.EngineFast},
		{Name: "gray-contrast-quarter", Scale: 0.25, Filters: grayContrast, Engine: decode.EngineFast},
		{Name: "gray-contrast-threequarter", Scale: 0.75, Filters: grayContrast, Engine: decode.EngineFast},
		{Name: "gray-blur-otsu", Scale: 1.0, Filters: filter.Chain{filter.Grayscale(), filter.GaussianBlur(), filter.OtsuThreshold()}, Engine: decode.EngineFast},
		{Name: "gray-median", Scale: 1.0, Filters: filter.Chain{filter.Grayscale(), filter.Median()}, Engine: decode.EngineFast},
		{Name: "gray-otsu", Scale: 1.0, Filters: filter.Chain{filter.Grayscale(), filter.OtsuThreshold()}, Engine: decode.EngineFast},
		{Name: "gray-equalize", Scale: 1.0, Filters: filter.Chain{filter.Grayscale(), filter.EqualizeHist()}, Engine: decode.EngineFast},
		{Name: "gray-contrast-1.5x", Scale: 1.5, Filters: grayContrast, Engine: decode.EngineFast},
		{Name: "gray-contrast-2x", Scale: 2.0, Filters: grayContrast, Engine: decode.EngineFast},
	}
}

// DefaultPrepassScales returns the scale factors the robust engine is retried
// across before any pixel filtering is applied.
func DefaultPrepassScales() []float64 {
	return []float64{1.0, 0.75, 0.5, 1.5, 2.0}
}
