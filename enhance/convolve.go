//go:build !gocv

package enhance

import (
	"github.com/high-horse/fingerprint/internal/parallel"
	"github.com/high-horse/fingerprint/primitives"
)

// borderTable lists the source index for every tap position -half..size+half.
func borderTable(size, half int) []int {
	table := make([]int, size+2*half)
	for i := range table {
		table[i] = reflectIndex(i-half, size)
	}
	return table
}

// sepFilter correlates src with kx along rows and then ky along columns.
func sepFilter(src *primitives.DoubleMatrix, kx, ky []float64, workers int) *primitives.DoubleMatrix {
	w, h := src.Width, src.Height
	tmp := primitives.NewDoubleMatrix(w, h)
	dst := primitives.NewDoubleMatrix(w, h)

	hx := len(kx) / 2
	cols := borderTable(w, hx)
	parallel.Rows(workers, h, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			in := src.Row(y)
			out := tmp.Row(y)
			for x := 0; x < w; x++ {
				var sum float64
				for k, kv := range kx {
					sum += in[cols[x+k]] * kv
				}
				out[x] = sum
			}
		}
	})

	hy := len(ky) / 2
	rows := borderTable(h, hy)
	parallel.Rows(workers, h, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			out := dst.Row(y)
			for k, kv := range ky {
				in := tmp.Row(rows[y+k])
				for x := range out {
					out[x] += in[x] * kv
				}
			}
		}
	})
	return dst
}
