//go:build gocv

package enhance

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/high-horse/fingerprint/primitives"
)

// sepFilter correlates src with kx along rows and then ky along columns.
// OpenCV parallelises internally, so workers is unused.
func sepFilter(src *primitives.DoubleMatrix, kx, ky []float64, _ int) *primitives.DoubleMatrix {
	in := floatMat(src.Cells, src.Height, src.Width)
	defer in.Close()
	kernelX := floatMat(kx, 1, len(kx))
	defer kernelX.Close()
	kernelY := floatMat(ky, len(ky), 1)
	defer kernelY.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.SepFilter2D(in, &out, gocv.MatTypeCV64F, kernelX, kernelY, image.Pt(-1, -1), 0, gocv.BorderReflect101)
	return &primitives.DoubleMatrix{Width: src.Width, Height: src.Height, Cells: floats(out)}
}
