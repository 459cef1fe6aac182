// Package scan runs live scanning: a repeating per-frame loop that pulls
// frames from a capture source and attempts a fast decode on each one. The
// loop is fully independent of the still-image orchestrator and mutually
// exclusive with other sessions on the same scanner: starting a session
// releases the previously active one's capture source.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/inchinet/qrscanner/internal/decode"
	"github.com/inchinet/qrscanner/internal/pixel"
	"github.com/inchinet/qrscanner/internal/resample"
)

// FrameSource is the capture device seam: it produces frames until closed.
// Next blocks at the frame-ready boundary; it returns io.EOF when the source
// is exhausted or has been closed.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Result is one frame's decode outcome delivered to the session callback.
type Result struct {
	Text       string
	FrameIndex int
}

// Config controls the live-scan loop.
type Config struct {
	// MaxFrameDim downscales frames whose larger dimension exceeds it
	// before decoding. Zero means no downscaling.
	MaxFrameDim int

	// FrameInterval paces the loop between frames; zero runs as fast as the
	// source delivers.
	FrameInterval time.Duration
}

// DefaultConfig returns the default live-scan configuration.
func DefaultConfig() Config {
	return Config{MaxFrameDim: 800}
}

// Scanner owns at most one active live session at a time.
type Scanner struct {
	cfg Config
	dec decode.Decoder

	mu     sync.Mutex
	active *Session
}

// NewScanner builds a Scanner. A nil decoder selects the gozxing engines.
func NewScanner(cfg Config, dec decode.Decoder) *Scanner {
	if dec == nil {
		dec = decode.NewGoZXing()
	}
	return &Scanner{cfg: cfg, dec: dec}
}

// Session is one running live-scan loop.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	src       FrameSource
}

// Start begins scanning frames from src, invoking onResult for every decoded
// code. Any previously active session on this scanner is stopped first; the
// new session owns the source and closes it when the loop ends.
func (s *Scanner) Start(ctx context.Context, src FrameSource, onResult func(Result)) (*Session, error) {
	if src == nil {
		return nil, errors.New("scan: frame source is nil")
	}

	// The lock is held across stopping the previous session so two
	// concurrent Starts cannot both observe an idle scanner and each leave
	// a loop running. run never takes the lock, so waiting here is safe.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Stop()
		s.active = nil
	}

	ctx, cancel := context.WithCancel(ctx)
	session := &Session{cancel: cancel, done: make(chan struct{}), src: src}
	s.active = session

	go s.run(ctx, session, onResult)
	return session, nil
}

// Stop cancels the session loop, waits for it to finish, and releases the
// capture source. Safe to call more than once.
func (s *Session) Stop() {
	s.cancel()
	<-s.done
	s.closeSource()
}

// Done reports loop completion; closed when the session has fully stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) closeSource() {
	s.closeOnce.Do(func() {
		if err := s.src.Close(); err != nil {
			slog.Warn("Closing frame source failed", "error", err)
		}
	})
}

func (s *Scanner) run(ctx context.Context, session *Session, onResult func(Result)) {
	defer close(session.done)
	defer session.closeSource()

	frameIndex := 0
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := session.src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				slog.Warn("Frame acquisition failed", "frame", frameIndex, "error", err)
			}
			return
		}
		frameIndex++

		text, found, err := s.decodeFrame(frame)
		if err != nil {
			slog.Debug("Frame decode failed", "frame", frameIndex, "error", err)
		} else if found {
			onResult(Result{Text: text, FrameIndex: frameIndex})
			return
		}

		if s.cfg.FrameInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.FrameInterval):
			}
		}
	}
}

// decodeFrame downscales oversized frames and runs the fast engine without a
// polarity search; live scanning trades recall for per-frame latency.
func (s *Scanner) decodeFrame(frame image.Image) (string, bool, error) {
	if frame == nil {
		return "", false, errors.New("scan: nil frame")
	}
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return "", false, fmt.Errorf("scan: zero-area frame %dx%d", w, h)
	}

	if tw, th := resample.FitWithin(w, h, s.cfg.MaxFrameDim); tw != w || th != h {
		scaled, err := resample.ScaleRGBA(frame, tw, th)
		if err != nil {
			return "", false, err
		}
		frame = scaled
	}

	buf, err := pixel.FromImage(frame)
	if err != nil {
		return "", false, err
	}
	res, found, err := s.dec.FastDecode(buf, decode.InvertNever)
	if err != nil || !found {
		return "", false, err
	}
	return res.Text, true, nil
}
