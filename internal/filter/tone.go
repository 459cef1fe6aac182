package filter

import "github.com/inchinet/qrscanner/internal/pixel"

// grayscale writes BT.601 luma into all three color channels.
func grayscale(buf *pixel.Buffer) {
	for i := 0; i < len(buf.Pix); i += pixel.Stride {
		v := pixel.LumaRGB(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
		buf.Pix[i] = v
		buf.Pix[i+1] = v
		buf.Pix[i+2] = v
		buf.Pix[i+3] = 0xff
	}
}

// contrastStretch scales each color channel away from mid-gray.
func contrastStretch(buf *pixel.Buffer, factor float64) {
	// Precomputed lookup keeps the per-pixel loop to three table reads.
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		lut[v] = clampU8(factor*(float64(v)-128) + 128)
	}
	for i := 0; i < len(buf.Pix); i += pixel.Stride {
		buf.Pix[i] = lut[buf.Pix[i]]
		buf.Pix[i+1] = lut[buf.Pix[i+1]]
		buf.Pix[i+2] = lut[buf.Pix[i+2]]
		buf.Pix[i+3] = 0xff
	}
}

// lumaHistogram builds the 256-bin intensity histogram of the buffer.
func lumaHistogram(buf *pixel.Buffer) [256]int {
	var hist [256]int
	for i := 0; i < len(buf.Pix); i += pixel.Stride {
		hist[pixel.LumaRGB(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])]++
	}
	return hist
}

// equalizeHist remaps luma through the cumulative distribution and writes the
// result as gray. A flat image (total == cdfMin) is left unchanged.
func equalizeHist(buf *pixel.Buffer) {
	hist := lumaHistogram(buf)

	var cdf [256]int
	running := 0
	for v := 0; v < 256; v++ {
		running += hist[v]
		cdf[v] = running
	}
	total := buf.Width * buf.Height

	cdfMin := 0
	for v := 0; v < 256; v++ {
		if cdf[v] > 0 {
			cdfMin = cdf[v]
			break
		}
	}
	if total == cdfMin {
		// Single-intensity image; the mapping would divide by zero.
		return
	}

	var lut [256]uint8
	denom := float64(total - cdfMin)
	for v := 0; v < 256; v++ {
		mapped := float64(cdf[v]-cdfMin) / denom * 255
		lut[v] = clampU8(mapped + 0.5)
	}
	for i := 0; i < len(buf.Pix); i += pixel.Stride {
		v := lut[pixel.LumaRGB(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])]
		buf.Pix[i] = v
		buf.Pix[i+1] = v
		buf.Pix[i+2] = v
		buf.Pix[i+3] = 0xff
	}
}
