package filter

import (
	"math"

	"github.com/inchinet/qrscanner/internal/pixel"
)

var (
	sharpenKernel  = [9]int{0, -1, 0, -1, 5, -1, 0, -1, 0}
	gaussianKernel = [9]int{1, 2, 1, 2, 4, 2, 1, 2, 1}
)

// convolve3x3 applies an integer 3x3 kernel with the given divisor to each
// color channel. The outermost pixel ring is left unmodified.
func convolve3x3(buf *pixel.Buffer, kernel [9]int, divisor int) {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 {
		return
	}
	src := make([]uint8, len(buf.Pix))
	copy(src, buf.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for ch := 0; ch < 3; ch++ {
				acc := 0
				k := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						i := ((y+dy)*w + (x + dx)) * pixel.Stride
						acc += kernel[k] * int(src[i+ch])
						k++
					}
				}
				buf.Pix[(y*w+x)*pixel.Stride+ch] = clampU8(float64(acc) / float64(divisor))
			}
			buf.Pix[(y*w+x)*pixel.Stride+3] = 0xff
		}
	}
}

var (
	sobelGx = [9]int{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelGy = [9]int{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// sobel writes the gradient magnitude sqrt(Gx^2+Gy^2) of the luma plane into
// all color channels, clamped to 8 bits. Border ring unmodified.
func sobel(buf *pixel.Buffer) {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 {
		return
	}
	luma := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			luma[y*w+x] = buf.Luma(x, y)
		}
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx, gy := 0, 0
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					v := int(luma[(y+dy)*w+(x+dx)])
					gx += sobelGx[k] * v
					gy += sobelGy[k] * v
					k++
				}
			}
			mag := clampU8(math.Sqrt(float64(gx*gx + gy*gy)))
			buf.SetGray(x, y, mag)
		}
	}
}
