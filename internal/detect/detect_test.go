package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inchinet/qrscanner/internal/decode"
	"github.com/inchinet/qrscanner/internal/pixel"
	"github.com/inchinet/qrscanner/internal/testutil"
)

// stubDecoder scripts engine behavior so orchestration order can be verified
// without depending on decoder internals.
type stubDecoder struct {
	fastCalls   int
	robustCalls int
	succeedOn   int // 1-based fast call index that succeeds; 0 never
	panicOn     int // 1-based fast call index that panics; 0 never
	errOn       int // 1-based fast call index that errors; 0 never
	robustFinds bool
	text        string
	fastBuffers []*pixel.Buffer
}

func (s *stubDecoder) FastDecode(buf *pixel.Buffer, _ decode.InvertPolicy) (decode.Result, bool, error) {
	s.fastCalls++
	s.fastBuffers = append(s.fastBuffers, buf.Clone())
	if s.panicOn != 0 && s.fastCalls == s.panicOn {
		panic("scripted kernel failure")
	}
	if s.errOn != 0 && s.fastCalls == s.errOn {
		return decode.Result{}, false, errors.New("scripted decode failure")
	}
	if s.succeedOn != 0 && s.fastCalls == s.succeedOn {
		return decode.Result{Text: s.text}, true, nil
	}
	return decode.Result{}, false, nil
}

func (s *stubDecoder) RobustDecode(_ *pixel.Buffer, _ bool) (decode.Result, bool, error) {
	s.robustCalls++
	if s.robustFinds {
		return decode.Result{Text: s.text}, true, nil
	}
	return decode.Result{}, false, nil
}

// recordingProgress captures progress notifications.
type recordingProgress struct {
	started    int
	strategies []string
	completed  []Outcome
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnStrategy(_, _ int, name string) {
	r.strategies = append(r.strategies, name)
}
func (r *recordingProgress) OnComplete(o Outcome) { r.completed = append(r.completed, o) }

func TestDefaultStrategiesShape(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 13)

	assert.Equal(t, "original", strategies[0].Name)
	assert.Empty(t, strategies[0].Filters)
	assert.Equal(t, 1.0, strategies[0].Scale)

	assert.Equal(t, "threshold-180", strategies[1].Name)
	assert.Equal(t, "threshold-210", strategies[2].Name)
	assert.Equal(t, "threshold-140", strategies[3].Name)
	assert.Equal(t, 0.5, strategies[4].Scale)
	assert.Equal(t, 0.25, strategies[5].Scale)
	assert.Equal(t, 0.75, strategies[6].Scale)
	assert.Equal(t, "gray-blur-otsu", strategies[7].Name)
	assert.Equal(t, "gray-median", strategies[8].Name)
	assert.Equal(t, "gray-otsu", strategies[9].Name)
	assert.Equal(t, "gray-equalize", strategies[10].Name)
	assert.Equal(t, 1.5, strategies[11].Scale)
	assert.Equal(t, 2.0, strategies[12].Scale)

	for _, s := range strategies {
		assert.Equal(t, decode.EngineFast, s.Engine, s.Name)
	}
	assert.Equal(t, []float64{1.0, 0.75, 0.5, 1.5, 2.0}, DefaultPrepassScales())
}

func TestRunStopsAtFirstSuccessInOrder(t *testing.T) {
	// Only the blur-otsu strategy (8th in the list) can decode: the
	// orchestrator must execute strategies 1..8 in order and stop there.
	stub := &stubDecoder{succeedOn: 8, text: "late success"}
	progress := &recordingProgress{}
	cfg := DefaultConfig()
	cfg.Progress = progress

	d, err := New(cfg, stub)
	require.NoError(t, err)

	src := testutil.GenerateNoise(64, 64, 1)
	outcome, err := d.Run(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, outcome.Found)
	assert.Equal(t, "late success", outcome.Text)
	assert.Equal(t, 8, outcome.StrategyIndex)
	assert.Equal(t, "gray-blur-otsu", outcome.Strategy)
	assert.Equal(t, 8, outcome.StrategiesTried)
	assert.Equal(t, 8, stub.fastCalls)
	assert.Equal(t, 5, stub.robustCalls)

	require.Len(t, progress.strategies, 8)
	assert.Equal(t, []string{
		"original", "threshold-180", "threshold-210", "threshold-140",
		"gray-contrast-half", "gray-contrast-quarter", "gray-contrast-threequarter",
		"gray-blur-otsu",
	}, progress.strategies)
	assert.Equal(t, 13, progress.started)
	require.Len(t, progress.completed, 1)
}

func TestRunPrepassFailsThenSecondStrategyWins(t *testing.T) {
	// The robust pre-pass misses everywhere; the fast engine succeeds only
	// on the second strategy (fixed threshold 180).
	stub := &stubDecoder{succeedOn: 2, text: "bleached"}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(64, 64, 2))
	require.NoError(t, err)

	require.Len(t, outcome.Prepass, 5)
	for _, attempt := range outcome.Prepass {
		assert.False(t, attempt.Found)
		assert.NoError(t, attempt.Err)
	}
	assert.True(t, outcome.Found)
	assert.Equal(t, 2, outcome.StrategyIndex)
	assert.Equal(t, "threshold-180", outcome.Strategy)
}

func TestRunPrepassShortCircuits(t *testing.T) {
	stub := &stubDecoder{robustFinds: true, text: "prepass hit"}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(64, 64, 3))
	require.NoError(t, err)

	assert.True(t, outcome.Found)
	assert.Equal(t, "robust-prepass", outcome.Strategy)
	assert.Equal(t, 0, outcome.StrategyIndex)
	assert.Equal(t, 1.0, outcome.PrepassScale)
	assert.Equal(t, 1, stub.robustCalls)
	assert.Zero(t, stub.fastCalls)
	require.Len(t, outcome.Prepass, 1)
	assert.True(t, outcome.Prepass[0].Found)
}

// cancellingDecoder cancels the run's context from inside a successful robust
// decode, modeling a caller cancelling while the winning attempt is in flight.
type cancellingDecoder struct {
	cancel context.CancelFunc
}

func (c *cancellingDecoder) FastDecode(*pixel.Buffer, decode.InvertPolicy) (decode.Result, bool, error) {
	return decode.Result{}, false, nil
}

func (c *cancellingDecoder) RobustDecode(*pixel.Buffer, bool) (decode.Result, bool, error) {
	c.cancel()
	return decode.Result{Text: "late cancel"}, true, nil
}

func TestRunPrepassSuccessDuringCancellationReturnsNoError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d, err := New(DefaultConfig(), &cancellingDecoder{cancel: cancel})
	require.NoError(t, err)

	outcome, err := d.Run(ctx, testutil.GenerateNoise(64, 64, 3))
	require.NoError(t, err)
	assert.True(t, outcome.Found)
	assert.Equal(t, "late cancel", outcome.Text)
	assert.Equal(t, "robust-prepass", outcome.Strategy)
}

func TestRunExhaustionReportsNotFound(t *testing.T) {
	stub := &stubDecoder{}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(64, 64, 4))
	require.NoError(t, err)

	assert.False(t, outcome.Found)
	assert.Empty(t, outcome.Text)
	assert.Equal(t, 13, outcome.StrategiesTried)
	assert.Len(t, outcome.Prepass, 5)
	assert.Equal(t, 13, stub.fastCalls)
}

func TestRunKernelPanicIsAMissForThatStrategyOnly(t *testing.T) {
	stub := &stubDecoder{panicOn: 3, succeedOn: 5, text: "survived"}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(64, 64, 5))
	require.NoError(t, err)

	assert.True(t, outcome.Found)
	assert.Equal(t, 5, outcome.StrategyIndex)
	assert.Equal(t, 5, outcome.StrategiesTried)
}

func TestRunDecodeErrorIsAMissForThatStrategyOnly(t *testing.T) {
	stub := &stubDecoder{errOn: 1, succeedOn: 4, text: "recovered"}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(64, 64, 6))
	require.NoError(t, err)

	assert.True(t, outcome.Found)
	assert.Equal(t, 4, outcome.StrategyIndex)
}

func TestRunStrategiesResampleFreshFromSource(t *testing.T) {
	// The 0.25-scale strategy must see a buffer resampled from the original
	// image, not chained from a previous strategy's binarized output.
	stub := &stubDecoder{}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	src := testutil.GenerateNoise(80, 80, 7)
	_, err = d.Run(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, stub.fastBuffers, 13)
	assert.Equal(t, 80, stub.fastBuffers[0].Width)   // original
	assert.Equal(t, 40, stub.fastBuffers[4].Width)   // scale 0.5
	assert.Equal(t, 20, stub.fastBuffers[5].Width)   // scale 0.25
	assert.Equal(t, 60, stub.fastBuffers[6].Width)   // scale 0.75
	assert.Equal(t, 120, stub.fastBuffers[11].Width) // scale 1.5
	assert.Equal(t, 160, stub.fastBuffers[12].Width) // scale 2.0

	// Threshold strategies at scale 1.0 saw binarized pixels while the
	// original-strategy buffer stayed untouched noise.
	binary := true
	for i := 0; i < len(stub.fastBuffers[1].Pix); i += pixel.Stride {
		if v := stub.fastBuffers[1].Pix[i]; v != 0 && v != 255 {
			binary = false
			break
		}
	}
	assert.True(t, binary)
}

func TestRunNilAndZeroAreaImage(t *testing.T) {
	d, err := New(DefaultConfig(), &stubDecoder{})
	require.NoError(t, err)

	_, err = d.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunCancellationStopsBetweenStrategies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubDecoder{}
	d, err := New(DefaultConfig(), stub)
	require.NoError(t, err)

	_, err = d.Run(ctx, testutil.GenerateNoise(64, 64, 8))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stub.fastCalls)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Strategies = []Strategy{{Name: "bad", Scale: 0}}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PrepassScales = []float64{1.0, -0.5}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Strategies = nil
	assert.Error(t, cfg.Validate())
}

func TestNewDefaults(t *testing.T) {
	d, err := New(Config{}, &stubDecoder{})
	require.NoError(t, err)
	assert.Len(t, d.cfg.Strategies, 13)
	assert.Len(t, d.cfg.PrepassScales, 5)
	assert.NotNil(t, d.cfg.Progress)
}

// Real-engine scenarios: gozxing-backed detector against synthetic fixtures.

func TestScenarioCrispQRDecodedByPrepass(t *testing.T) {
	img, err := testutil.GenerateQR(testutil.DefaultQRConfig("https://example.com"))
	require.NoError(t, err)

	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), img)
	require.NoError(t, err)
	require.True(t, outcome.Found)
	assert.Equal(t, "https://example.com", outcome.Text)
	assert.Equal(t, "robust-prepass", outcome.Strategy)
	assert.Equal(t, 1.0, outcome.PrepassScale)
}

func TestScenarioCrispQRFirstStrategyWithoutPrepass(t *testing.T) {
	img, err := testutil.GenerateQR(testutil.DefaultQRConfig("https://example.com"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.DisablePrepass = true
	d, err := New(cfg, nil)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), img)
	require.NoError(t, err)
	require.True(t, outcome.Found)
	assert.Equal(t, "https://example.com", outcome.Text)
	assert.Equal(t, 1, outcome.StrategyIndex)
	assert.Equal(t, "original", outcome.Strategy)
	assert.Empty(t, outcome.Prepass)
}

func TestScenarioAllNoiseExhaustsEverything(t *testing.T) {
	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	outcome, err := d.Run(context.Background(), testutil.GenerateNoise(150, 150, 99))
	require.NoError(t, err)

	assert.False(t, outcome.Found)
	assert.Len(t, outcome.Prepass, 5)
	assert.Equal(t, 13, outcome.StrategiesTried)
}
