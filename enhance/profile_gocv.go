//go:build gocv

package enhance

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// rotate turns the content of an n*n block by angle radians about its centre
// with bilinear sampling and replicated borders.
func rotate(block []float64, n int, angle float64) []float64 {
	src := floatMat(block, n, n)
	defer src.Close()

	// maps destination to source coordinates
	c := float64(n-1) / 2
	sin, cos := math.Sincos(angle)
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer m.Close()
	m.SetDoubleAt(0, 0, cos)
	m.SetDoubleAt(0, 1, -sin)
	m.SetDoubleAt(0, 2, c-c*cos+c*sin)
	m.SetDoubleAt(1, 0, sin)
	m.SetDoubleAt(1, 1, cos)
	m.SetDoubleAt(1, 2, c-c*sin-c*cos)

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(n, n),
		gocv.InterpolationLinear+gocv.WarpInverseMap, gocv.BorderReplicate, color.RGBA{})
	return floats(dst)
}

// dilate is a 1-D grey dilation with a window of size centred on each sample.
func dilate(profile []float64, size int) []float64 {
	src := floatMat(profile, 1, len(profile))
	defer src.Close()
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, 1))
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Dilate(src, &dst, kernel)
	return floats(dst)
}
