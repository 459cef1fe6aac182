// Package detect implements the strategy orchestrator: a robust-engine
// pre-pass over a small set of scale factors, followed by an ordered list of
// (resample, filter chain, decoder) strategies executed against one source
// image until the first success or exhaustion. Every run is a stateless
// function of its input; nothing is cached across invocations.
package detect

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/inchinet/qrscanner/internal/decode"
	"github.com/inchinet/qrscanner/internal/resample"
)

// Config holds orchestrator configuration.
type Config struct {
	// PrepassScales are the robust-engine scale factors tried before any
	// pixel filtering. Empty disables the pre-pass unless defaulted.
	PrepassScales []float64

	// DisablePrepass skips the robust pre-pass entirely.
	DisablePrepass bool

	// Strategies is the ordered strategy list. Defaults to DefaultStrategies.
	Strategies []Strategy

	// Progress receives per-strategy notifications. Defaults to NoOpProgress.
	Progress ProgressCallback
}

// DefaultConfig returns the fixed default orchestration configuration.
func DefaultConfig() Config {
	return Config{
		PrepassScales: DefaultPrepassScales(),
		Strategies:    DefaultStrategies(),
		Progress:      NoOpProgress{},
	}
}

// Validate checks the configuration for values that cannot run.
func (c Config) Validate() error {
	if len(c.Strategies) == 0 {
		return fmt.Errorf("detect: no strategies configured")
	}
	for i, s := range c.Strategies {
		if s.Scale <= 0 {
			return fmt.Errorf("detect: strategy %d (%s) has non-positive scale %g", i+1, s.Name, s.Scale)
		}
	}
	for _, s := range c.PrepassScales {
		if s <= 0 {
			return fmt.Errorf("detect: non-positive pre-pass scale %g", s)
		}
	}
	return nil
}

// PrepassAttempt records one robust pre-pass attempt so failures stay
// observable instead of being swallowed.
type PrepassAttempt struct {
	Scale    float64
	Found    bool
	Err      error
	Duration time.Duration
}

// Outcome is the definitive result of one detection run: either exactly one
// decoded text payload, or not found after exhaustion. Never partial.
type Outcome struct {
	Found bool
	Text  string

	// Strategy names what succeeded; "robust-prepass" for the pre-pass.
	Strategy string

	// StrategyIndex is the 1-based position of the winning strategy in the
	// ordered list, or 0 when the pre-pass (or nothing) decoded.
	StrategyIndex int

	// PrepassScale is the winning pre-pass scale factor, if any.
	PrepassScale float64

	// Prepass holds the per-attempt record of the robust pre-pass.
	Prepass []PrepassAttempt

	// StrategiesTried counts filter-chain strategies actually executed.
	StrategiesTried int
}

// Detector runs the orchestration. Construct with New; safe for reuse across
// runs since it holds no per-run state.
type Detector struct {
	cfg Config
	dec decode.Decoder
}

// New builds a Detector. A nil decoder selects the gozxing-backed engines.
func New(cfg Config, dec decode.Decoder) (*Detector, error) {
	if cfg.Strategies == nil {
		cfg.Strategies = DefaultStrategies()
	}
	if cfg.PrepassScales == nil && !cfg.DisablePrepass {
		cfg.PrepassScales = DefaultPrepassScales()
	}
	if cfg.Progress == nil {
		cfg.Progress = NoOpProgress{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dec == nil {
		dec = decode.NewGoZXing()
	}
	return &Detector{cfg: cfg, dec: dec}, nil
}

// Run executes the detection state machine against one source image:
// robust pre-pass first, then the ordered strategy list, short-circuiting on
// the first decoded text. Cancelling the context stops the run between
// attempts; buffers never outlive their owning attempt, so interruption
// leaks nothing.
func (d *Detector) Run(ctx context.Context, src image.Image) (Outcome, error) {
	if src == nil {
		return Outcome{}, fmt.Errorf("detect: source image is nil")
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Outcome{}, fmt.Errorf("detect: zero-area source image %dx%d", bounds.Dx(), bounds.Dy())
	}

	outcome := Outcome{}
	if !d.cfg.DisablePrepass {
		if done := d.runPrepass(ctx, src, &outcome); done {
			// A decoded payload is definitive even if the context was
			// cancelled while the last attempt was in flight.
			d.cfg.Progress.OnComplete(outcome)
			return outcome, nil
		}
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
	}

	total := len(d.cfg.Strategies)
	d.cfg.Progress.OnStart(total)

	for i, strategy := range d.cfg.Strategies {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		index := i + 1
		d.cfg.Progress.OnStrategy(index, total, strategy.Name)

		res, found, err := d.tryStrategy(strategy, src)
		outcome.StrategiesTried++
		if err != nil {
			// A failing kernel or decode error is a miss for this strategy
			// only; the remaining strategies must still run.
			slog.Warn("Strategy attempt failed", "index", index, "strategy", strategy.Name, "error", err)
			continue
		}
		if found {
			outcome.Found = true
			outcome.Text = res.Text
			outcome.Strategy = strategy.Name
			outcome.StrategyIndex = index
			d.cfg.Progress.OnComplete(outcome)
			return outcome, nil
		}
	}

	d.cfg.Progress.OnComplete(outcome)
	return outcome, nil
}

// runPrepass retries the robust engine across the configured scale factors
// before any filtering. Returns true when a code was decoded.
func (d *Detector) runPrepass(ctx context.Context, src image.Image, outcome *Outcome) bool {
	for _, scale := range d.cfg.PrepassScales {
		if ctx.Err() != nil {
			return false
		}
		start := time.Now()
		res, found, err := d.tryPrepassScale(src, scale)
		attempt := PrepassAttempt{Scale: scale, Found: found, Err: err, Duration: time.Since(start)}
		outcome.Prepass = append(outcome.Prepass, attempt)
		if err != nil {
			slog.Warn("Robust pre-pass attempt failed", "scale", scale, "error", err)
			continue
		}
		if found {
			outcome.Found = true
			outcome.Text = res.Text
			outcome.Strategy = "robust-prepass"
			outcome.PrepassScale = scale
			return true
		}
	}
	return false
}

func (d *Detector) tryPrepassScale(src image.Image, scale float64) (res decode.Result, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pre-pass scale %g: panic: %v", scale, r)
		}
	}()
	buf, err := resample.ToScale(src, scale)
	if err != nil {
		return decode.Result{}, false, err
	}
	return d.dec.RobustDecode(buf, true)
}

// tryStrategy resamples fresh from the original source, applies the filter
// chain, and attempts one decode. Panics inside a kernel are confined to the
// strategy boundary and surfaced as errors.
func (d *Detector) tryStrategy(strategy Strategy, src image.Image) (res decode.Result, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %q: panic: %v", strategy.Name, r)
		}
	}()

	buf, err := resample.ToScale(src, strategy.Scale)
	if err != nil {
		return decode.Result{}, false, fmt.Errorf("strategy %q: %w", strategy.Name, err)
	}
	if err := strategy.Filters.Apply(buf); err != nil {
		return decode.Result{}, false, fmt.Errorf("strategy %q: %w", strategy.Name, err)
	}

	switch strategy.Engine {
	case decode.EngineRobust:
		return d.dec.RobustDecode(buf, true)
	default:
		return d.dec.FastDecode(buf, decode.InvertAlso)
	}
}
