// Package testutil generates synthetic images for tests: rendered QR codes
// with controllable module size and contrast, plus noise images that contain
// no code at all.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRConfig controls rendered QR fixtures.
type QRConfig struct {
	Text       string
	ModuleSize int // pixels per QR module
	QuietZone  int // border in modules
	Foreground color.Color
	Background color.Color
}

// DefaultQRConfig returns a crisp, well-lit QR fixture configuration.
func DefaultQRConfig(text string) QRConfig {
	return QRConfig{
		Text:       text,
		ModuleSize: 8,
		QuietZone:  4,
		Foreground: color.Black,
		Background: color.White,
	}
}

// GenerateQR renders the configured QR code into an RGBA image by encoding
// the text to a bit matrix and painting each module as a square block.
func GenerateQR(cfg QRConfig) (*image.RGBA, error) {
	if cfg.ModuleSize <= 0 {
		cfg.ModuleSize = 8
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.Black
	}
	if cfg.Background == nil {
		cfg.Background = color.White
	}

	writer := qrcode.NewQRCodeWriter()
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: cfg.QuietZone,
	}
	// Encode at the matrix's natural size; rendering handles magnification.
	matrix, err := writer.Encode(cfg.Text, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	mw, mh := matrix.GetWidth(), matrix.GetHeight()
	img := image.NewRGBA(image.Rect(0, 0, mw*cfg.ModuleSize, mh*cfg.ModuleSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: cfg.Background}, image.Point{}, draw.Src)

	for my := 0; my < mh; my++ {
		for mx := 0; mx < mw; mx++ {
			if !matrix.Get(mx, my) {
				continue
			}
			block := image.Rect(
				mx*cfg.ModuleSize, my*cfg.ModuleSize,
				(mx+1)*cfg.ModuleSize, (my+1)*cfg.ModuleSize,
			)
			draw.Draw(img, block, &image.Uniform{C: cfg.Foreground}, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// GenerateNoise returns an image of uniform random pixels containing no code.
// The seed makes fixtures reproducible across runs.
func GenerateNoise(width, height int, seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

// GenerateInvertedQR renders a light-on-dark QR, decodable only with a
// polarity search.
func GenerateInvertedQR(text string) (*image.RGBA, error) {
	cfg := DefaultQRConfig(text)
	cfg.Foreground = color.White
	cfg.Background = color.Black
	return GenerateQR(cfg)
}

// SavePNG writes an image to disk, for debugging fixture generation.
func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path) //nolint:gosec // test fixture path is test-controlled
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}
