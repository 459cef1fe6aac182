// Package decode provides a uniform adapter over the two external decode
// engines: a fast single-pass QR reader and a robust reader driven with an
// exhaustive try-harder search. Both engines are consumed as black boxes; a
// decode miss is a normal outcome, not an error.
package decode

import (
	"errors"
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"golang.org/x/text/unicode/norm"

	"github.com/inchinet/qrscanner/internal/pixel"
)

// Engine selects which backing decode engine a strategy uses.
type Engine int

const (
	EngineFast Engine = iota
	EngineRobust
)

func (e Engine) String() string {
	switch e {
	case EngineFast:
		return "fast"
	case EngineRobust:
		return "robust"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// InvertPolicy controls the fast engine's polarity search. Live scanning uses
// InvertNever for speed; still images attempt both polarities.
type InvertPolicy int

const (
	InvertNever InvertPolicy = iota
	InvertAlso
	InvertOnly
)

// Point is a decoder-reported key point in image coordinates.
type Point struct {
	X float64
	Y float64
}

// Result is one decoded payload. When multiple candidate regions exist the
// engines return the first one found; no ranking is attempted.
type Result struct {
	Text   string
	Points []Point
}

// Decoder is the capability boundary between the orchestrator and the
// external engines. The boolean reports whether a code was found; errors are
// reserved for malformed input, never for a miss.
type Decoder interface {
	FastDecode(buf *pixel.Buffer, policy InvertPolicy) (Result, bool, error)
	RobustDecode(buf *pixel.Buffer, tryHarder bool) (Result, bool, error)
}

// GoZXing implements Decoder on top of the gozxing QR reader. The fast path
// runs it hintless over a single binarization; the robust path runs a second
// instance, optionally with the TRY_HARDER hint enabled. The instances are
// separate because gozxing readers keep decode state between calls.
type GoZXing struct {
	fast   gozxing.Reader
	robust gozxing.Reader
}

// NewGoZXing constructs the adapter with both readers ready.
func NewGoZXing() *GoZXing {
	return &GoZXing{
		fast:   qrcode.NewQRCodeReader(),
		robust: qrcode.NewQRCodeReader(),
	}
}

// FastDecode runs the single-pass QR reader, optionally retrying on the
// inverted luminance depending on policy.
func (d *GoZXing) FastDecode(buf *pixel.Buffer, policy InvertPolicy) (Result, bool, error) {
	if err := buf.Validate(); err != nil {
		return Result{}, false, fmt.Errorf("fast decode: %w", err)
	}
	source := gozxing.NewLuminanceSourceFromImage(buf.ToImage())

	if policy != InvertOnly {
		if res, found, err := d.decodeSource(d.fast, source, nil); found || err != nil {
			return res, found, err
		}
	}
	if policy == InvertNever {
		return Result{}, false, nil
	}
	return d.decodeSource(d.fast, gozxing.LuminanceSourceInvert(source), nil)
}

// RobustDecode runs the QR reader with the exhaustive search hint when
// tryHarder is set.
func (d *GoZXing) RobustDecode(buf *pixel.Buffer, tryHarder bool) (Result, bool, error) {
	if err := buf.Validate(); err != nil {
		return Result{}, false, fmt.Errorf("robust decode: %w", err)
	}
	var hints map[gozxing.DecodeHintType]interface{}
	if tryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	source := gozxing.NewLuminanceSourceFromImage(buf.ToImage())
	return d.decodeSource(d.robust, source, hints)
}

func (d *GoZXing) decodeSource(
	reader gozxing.Reader,
	source gozxing.LuminanceSource,
	hints map[gozxing.DecodeHintType]interface{},
) (Result, bool, error) {
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return Result{}, false, fmt.Errorf("binarize: %w", err)
	}
	raw, err := reader.Decode(bitmap, hints)
	if err != nil {
		if isMiss(err) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("decode: %w", err)
	}
	return normalizeResult(raw), true, nil
}

// isMiss reports whether the error is a reader-level "no code found" signal
// (not-found, checksum, format) rather than a real failure.
func isMiss(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

func normalizeResult(raw *gozxing.Result) Result {
	res := Result{Text: norm.NFC.String(raw.GetText())}
	for _, p := range raw.GetResultPoints() {
		if p == nil {
			continue
		}
		res.Points = append(res.Points, Point{X: p.GetX(), Y: p.GetY()})
	}
	return res
}
