package pixel

import (
	"fmt"
	"image"
	"image/draw"
)

// Stride is the number of samples per pixel (interleaved R,G,B,A).
const Stride = 4

// BufferError represents errors caused by malformed pixel buffers.
type BufferError struct {
	Operation string
	Err       error
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("pixel buffer error in %s: %v", e.Operation, e.Err)
}

func (e *BufferError) Unwrap() error { return e.Err }

// Buffer is an in-memory RGBA raster with interleaved 8-bit samples.
// Invariant: len(Pix) == Width*Height*Stride. A Buffer is owned by exactly
// one stage at a time; filters mutate it in place and hand it on.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates an opaque black buffer of the given dimensions.
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &BufferError{
			Operation: "new",
			Err:       fmt.Errorf("invalid dimensions %dx%d", width, height),
		}
	}
	pix := make([]uint8, width*height*Stride)
	for i := 3; i < len(pix); i += Stride {
		pix[i] = 0xff
	}
	return &Buffer{Width: width, Height: height, Pix: pix}, nil
}

// FromImage copies an image into a freshly allocated Buffer.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, &BufferError{Operation: "from_image", Err: fmt.Errorf("input image is nil")}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &BufferError{
			Operation: "from_image",
			Err:       fmt.Errorf("zero-area image %dx%d", bounds.Dx(), bounds.Dy()),
		}
	}
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return &Buffer{Width: rgba.Rect.Dx(), Height: rgba.Rect.Dy(), Pix: rgba.Pix}, nil
}

// Validate checks the buffer invariant. Malformed buffers fail fast before
// any strategy work starts.
func (b *Buffer) Validate() error {
	if b == nil {
		return &BufferError{Operation: "validate", Err: fmt.Errorf("buffer is nil")}
	}
	if b.Width <= 0 || b.Height <= 0 {
		return &BufferError{
			Operation: "validate",
			Err:       fmt.Errorf("zero-area buffer %dx%d", b.Width, b.Height),
		}
	}
	if want := b.Width * b.Height * Stride; len(b.Pix) != want {
		return &BufferError{
			Operation: "validate",
			Err:       fmt.Errorf("sample count %d does not match %dx%d (want %d)", len(b.Pix), b.Width, b.Height, want),
		}
	}
	return nil
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the index of the R sample of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * Stride
}

// RGBA returns the samples of pixel (x, y).
func (b *Buffer) RGBA(x, y int) (r, g, bl, a uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// SetRGBA writes the samples of pixel (x, y).
func (b *Buffer) SetRGBA(x, y int, r, g, bl, a uint8) {
	i := b.Offset(x, y)
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
	b.Pix[i+3] = a
}

// SetGray writes v into all three color channels and forces alpha opaque.
func (b *Buffer) SetGray(x, y int, v uint8) {
	b.SetRGBA(x, y, v, v, v, 0xff)
}

// Luma returns the BT.601 luma of pixel (x, y), computed from the color
// channels regardless of whether the buffer has been grayscaled before.
func (b *Buffer) Luma(x, y int) uint8 {
	i := b.Offset(x, y)
	return LumaRGB(b.Pix[i], b.Pix[i+1], b.Pix[i+2])
}

// LumaRGB converts a single RGB triple to BT.601 luma
// (0.299R + 0.587G + 0.114B), in integer arithmetic so a gray input maps to
// exactly itself.
func LumaRGB(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b)) / 1000)
}

// ToImage wraps the buffer samples in an *image.RGBA sharing the same memory.
func (b *Buffer) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}
