package filter

import (
	"math"
	"sort"

	"github.com/inchinet/qrscanner/internal/pixel"
)

// median3x3 replaces each color sample with the median of its 3x3
// neighborhood (index 4 of the sorted nine values). Border ring unmodified.
func median3x3(buf *pixel.Buffer) {
	w, h := buf.Width, buf.Height
	if w < 3 || h < 3 {
		return
	}
	src := make([]uint8, len(buf.Pix))
	copy(src, buf.Pix)

	var window [9]uint8
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for ch := 0; ch < 3; ch++ {
				k := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						window[k] = src[((y+dy)*w+(x+dx))*pixel.Stride+ch]
						k++
					}
				}
				sorted := window
				sort.Slice(sorted[:], func(i, j int) bool { return sorted[i] < sorted[j] })
				buf.Pix[(y*w+x)*pixel.Stride+ch] = sorted[4]
			}
			buf.Pix[(y*w+x)*pixel.Stride+3] = 0xff
		}
	}
}

// bilateral applies an edge-preserving blur: each neighbor is weighted by the
// product of a spatial Gaussian over its distance and a range Gaussian over
// its per-channel difference from the center pixel. The border ring of width
// radius is left unmodified.
func bilateral(buf *pixel.Buffer, radius int, sigmaSpace, sigmaColor float64) {
	w, h := buf.Width, buf.Height
	size := 2*radius + 1
	if w < size || h < size {
		return
	}
	src := make([]uint8, len(buf.Pix))
	copy(src, buf.Pix)

	// Both Gaussians are table-driven: spatial weights by squared distance,
	// range weights by absolute channel difference.
	spatial := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*size+(dx+radius)] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var rangeLUT [256]float64
	for d := 0; d < 256; d++ {
		rangeLUT[d] = math.Exp(-float64(d*d) / (2 * sigmaColor * sigmaColor))
	}

	for y := radius; y < h-radius; y++ {
		for x := radius; x < w-radius; x++ {
			center := (y*w + x) * pixel.Stride
			for ch := 0; ch < 3; ch++ {
				cv := int(src[center+ch])
				var sum, weight float64
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						i := ((y+dy)*w + (x + dx)) * pixel.Stride
						nv := int(src[i+ch])
						diff := nv - cv
						if diff < 0 {
							diff = -diff
						}
						wgt := spatial[(dy+radius)*size+(dx+radius)] * rangeLUT[diff]
						sum += wgt * float64(nv)
						weight += wgt
					}
				}
				buf.Pix[center+ch] = clampU8(sum / weight)
			}
			buf.Pix[center+3] = 0xff
		}
	}
}
