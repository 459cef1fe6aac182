package scan

import (
	"context"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inchinet/qrscanner/internal/testutil"
)

// sliceSource replays a fixed list of frames, then reports EOF.
type sliceSource struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.next >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sliceSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// blockingSource blocks on Next until its context is cancelled.
type blockingSource struct {
	mu     sync.Mutex
	closed bool
}

func (b *blockingSource) Next(ctx context.Context) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *blockingSource) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func waitDone(t *testing.T, session *Session) {
	t.Helper()
	select {
	case <-session.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

func TestSessionDecodesQRFrameAfterNoise(t *testing.T) {
	qr, err := testutil.GenerateQR(testutil.DefaultQRConfig("wifi:ssid"))
	require.NoError(t, err)

	src := &sliceSource{frames: []image.Image{
		testutil.GenerateNoise(120, 120, 1),
		testutil.GenerateNoise(120, 120, 2),
		qr,
	}}

	var (
		mu      sync.Mutex
		results []Result
	)
	scanner := NewScanner(DefaultConfig(), nil)
	session, err := scanner.Start(context.Background(), src, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)
	waitDone(t, session)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, "wifi:ssid", results[0].Text)
	assert.Equal(t, 3, results[0].FrameIndex)
	assert.True(t, src.isClosed())
}

func TestSessionExhaustedSourceStopsCleanly(t *testing.T) {
	src := &sliceSource{frames: []image.Image{testutil.GenerateNoise(64, 64, 3)}}
	scanner := NewScanner(DefaultConfig(), nil)

	called := false
	session, err := scanner.Start(context.Background(), src, func(Result) { called = true })
	require.NoError(t, err)
	waitDone(t, session)

	assert.False(t, called)
	assert.True(t, src.isClosed())
}

func TestStopReleasesCaptureSource(t *testing.T) {
	src := &blockingSource{}
	scanner := NewScanner(DefaultConfig(), nil)

	session, err := scanner.Start(context.Background(), src, func(Result) {})
	require.NoError(t, err)

	session.Stop()
	assert.True(t, src.isClosed())

	// Stop is idempotent.
	session.Stop()
}

func TestStartingNewSessionStopsPreviousOne(t *testing.T) {
	first := &blockingSource{}
	second := &blockingSource{}
	scanner := NewScanner(DefaultConfig(), nil)

	s1, err := scanner.Start(context.Background(), first, func(Result) {})
	require.NoError(t, err)

	s2, err := scanner.Start(context.Background(), second, func(Result) {})
	require.NoError(t, err)

	waitDone(t, s1)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	s2.Stop()
	assert.True(t, second.isClosed())
}

func TestConcurrentStartsLeaveOneSessionRunning(t *testing.T) {
	// Racing Starts against a live session must never leave two loops
	// running; the loser of the race has to be stopped by the winner.
	for i := 0; i < 50; i++ {
		scanner := NewScanner(DefaultConfig(), nil)
		s0, err := scanner.Start(context.Background(), &blockingSource{}, func(Result) {})
		require.NoError(t, err)

		var wg sync.WaitGroup
		sessions := make([]*Session, 2)
		errs := make([]error, 2)
		for j := range sessions {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				sessions[j], errs[j] = scanner.Start(context.Background(), &blockingSource{}, func(Result) {})
			}(j)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		waitDone(t, s0)

		running := 0
		for _, s := range sessions {
			select {
			case <-s.Done():
			default:
				running++
			}
		}
		assert.Equal(t, 1, running, "iteration %d", i)

		for _, s := range sessions {
			s.Stop()
		}
	}
}

func TestStartRejectsNilSource(t *testing.T) {
	scanner := NewScanner(DefaultConfig(), nil)
	_, err := scanner.Start(context.Background(), nil, func(Result) {})
	assert.Error(t, err)
}

func TestOversizedFramesAreDownscaled(t *testing.T) {
	// A QR rendered larger than MaxFrameDim still decodes after the
	// CatmullRom downscale.
	cfg := testutil.DefaultQRConfig("big frame")
	cfg.ModuleSize = 32
	qr, err := testutil.GenerateQR(cfg)
	require.NoError(t, err)
	require.Greater(t, qr.Bounds().Dx(), 800)

	src := &sliceSource{frames: []image.Image{qr}}
	var (
		mu      sync.Mutex
		results []Result
	)
	scanner := NewScanner(DefaultConfig(), nil)
	session, err := scanner.Start(context.Background(), src, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)
	waitDone(t, session)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, "big frame", results[0].Text)
}
