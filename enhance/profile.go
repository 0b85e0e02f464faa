//go:build !gocv

package enhance

import (
	"math"

	"github.com/high-horse/fingerprint/primitives"
)

// rotate turns the content of an n*n block by angle radians, counter-clockwise
// as displayed, about its centre. Samples are bilinear with clamped borders.
func rotate(block []float64, n int, angle float64) []float64 {
	out := make([]float64, n*n)
	c := float64(n-1) / 2
	sin, cos := math.Sincos(angle)
	for y := 0; y < n; y++ {
		dy := float64(y) - c
		for x := 0; x < n; x++ {
			dx := float64(x) - c
			sx := c + dx*cos - dy*sin
			sy := c + dx*sin + dy*cos
			out[y*n+x] = bilinear(block, n, sx, sy)
		}
	}
	return out
}

func bilinear(block []float64, n int, x, y float64) float64 {
	x = primitives.Clamp(x, 0, float64(n-1))
	y = primitives.Clamp(y, 0, float64(n-1))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, n-1), min(y0+1, n-1)
	fx, fy := x-float64(x0), y-float64(y0)
	top := block[y0*n+x0]*(1-fx) + block[y0*n+x1]*fx
	bottom := block[y1*n+x0]*(1-fx) + block[y1*n+x1]*fx
	return top*(1-fy) + bottom*fy
}

// dilate is a 1-D grey dilation with a window of size centred on each sample.
func dilate(profile []float64, size int) []float64 {
	out := make([]float64, len(profile))
	lo := size / 2
	hi := size - 1 - lo
	for i := range profile {
		m := math.Inf(-1)
		for k := max(0, i-lo); k <= min(len(profile)-1, i+hi); k++ {
			m = math.Max(m, profile[k])
		}
		out[i] = m
	}
	return out
}
