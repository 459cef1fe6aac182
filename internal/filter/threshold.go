package filter

import "github.com/inchinet/qrscanner/internal/pixel"

// fixedThreshold binarizes luma at a caller-supplied constant. Luma is always
// recomputed from the color channels rather than assuming a prior grayscale
// pass. Strictly greater maps to white.
func fixedThreshold(buf *pixel.Buffer, threshold uint8) {
	for i := 0; i < len(buf.Pix); i += pixel.Stride {
		v := pixel.LumaRGB(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
		var out uint8
		if v > threshold {
			out = 255
		}
		buf.Pix[i] = out
		buf.Pix[i+1] = out
		buf.Pix[i+2] = out
		buf.Pix[i+3] = 0xff
	}
}

// otsuLevel selects the threshold maximizing between-class variance
// wB*wF*(mB-mF)^2 over the 256-bin histogram.
func otsuLevel(hist [256]int, total int) uint8 {
	var sumAll float64
	for v := 0; v < 256; v++ {
		sumAll += float64(v) * float64(hist[v])
	}

	var sumB float64
	wB := 0
	best := 0
	var maxVariance float64

	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}

// otsuThreshold binarizes at the automatically selected global threshold.
func otsuThreshold(buf *pixel.Buffer) {
	hist := lumaHistogram(buf)
	fixedThreshold(buf, otsuLevel(hist, buf.Width*buf.Height))
}

// adaptiveThreshold binarizes each pixel against the mean luma of its
// (2*blockSize+1)-square neighborhood clipped to the image, minus c. Direct
// window sums are acceptable here: strategies run this once per attempt on
// already-downscaled images.
func adaptiveThreshold(buf *pixel.Buffer, blockSize, c int) {
	w, h := buf.Width, buf.Height

	// One scratch plane of luma values so the pass reads pristine input.
	luma := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			luma[y*w+x] = buf.Luma(x, y)
		}
	}

	for y := 0; y < h; y++ {
		y0 := max(0, y-blockSize)
		y1 := min(h-1, y+blockSize)
		for x := 0; x < w; x++ {
			x0 := max(0, x-blockSize)
			x1 := min(w-1, x+blockSize)

			sum, count := 0, 0
			for yy := y0; yy <= y1; yy++ {
				row := yy * w
				for xx := x0; xx <= x1; xx++ {
					sum += int(luma[row+xx])
					count++
				}
			}
			mean := sum / count

			var out uint8
			if int(luma[y*w+x]) > mean-c {
				out = 255
			}
			buf.SetGray(x, y, out)
		}
	}
}
