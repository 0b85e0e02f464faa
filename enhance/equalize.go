//go:build !gocv

package enhance

import (
	"math"

	"github.com/high-horse/fingerprint/primitives"
)

// equalizeHist remaps intensities through the cumulative histogram so that the
// darkest present level becomes 0 and the brightest 255.
func equalizeHist(pixels []uint8) []uint8 {
	var hist [256]int
	for _, p := range pixels {
		hist[p]++
	}
	first := 0
	for first < 255 && hist[first] == 0 {
		first++
	}
	total := len(pixels)
	if hist[first] == total {
		return pixels
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		lut[i] = uint8(primitives.Clamp(math.Round(float64(sum)*scale), 0, 255))
	}
	out := make([]uint8, len(pixels))
	for i, p := range pixels {
		out[i] = lut[p]
	}
	return out
}
