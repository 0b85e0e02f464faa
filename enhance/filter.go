package enhance

import (
	"math"

	"github.com/high-horse/fingerprint/primitives"
)

// reflectIndex maps idx into [0, size) with reflect-101 borders (dcb|abcd|cba).
func reflectIndex(idx, size int) int {
	if size == 1 {
		return 0
	}
	if idx < 0 {
		idx = -idx
	}
	for idx >= size {
		idx = 2*size - 2 - idx
		if idx < 0 {
			idx = -idx
		}
	}
	return idx
}

// gaussianSize is 6 sigma rounded up to the next odd integer.
func gaussianSize(sigma float64) int {
	size := int(math.Ceil(6 * sigma))
	if size%2 == 0 {
		size++
	}
	return size
}

// gaussianKernel returns a normalised sampled Gaussian of odd length.
func gaussianKernel(sigma float64) []float64 {
	size := gaussianSize(sigma)
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// derivativeKernel is the central difference of g, one-sided at both ends.
func derivativeKernel(g []float64) []float64 {
	n := len(g)
	d := make([]float64, n)
	if n < 2 {
		return d
	}
	d[0] = g[1] - g[0]
	d[n-1] = g[n-1] - g[n-2]
	for i := 1; i < n-1; i++ {
		d[i] = (g[i+1] - g[i-1]) / 2
	}
	return d
}

func gaussianBlur(src *primitives.DoubleMatrix, sigma float64, workers int) *primitives.DoubleMatrix {
	k := gaussianKernel(sigma)
	return sepFilter(src, k, k, workers)
}
