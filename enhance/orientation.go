package enhance

import (
	"math"

	"github.com/high-horse/fingerprint/internal/parallel"
	"github.com/high-horse/fingerprint/primitives"
)

// Orientation estimates the local ridge direction of every pixel from the
// smoothed gradient structure tensor. Angles lie in [0, pi) and are measured
// from the +x axis towards +y (image rows grow downwards).
func Orientation(img *primitives.DoubleMatrix, gradientSigma, blockSigma, smoothSigma float64, workers int) *primitives.DoubleMatrix {
	g := gaussianKernel(gradientSigma)
	d := derivativeKernel(g)
	gx := sepFilter(img, d, g, workers)
	gy := sepFilter(img, g, d, workers)

	w, h := img.Width, img.Height
	gxx := primitives.NewDoubleMatrix(w, h)
	gyy := primitives.NewDoubleMatrix(w, h)
	gxy := primitives.NewDoubleMatrix(w, h)
	for i := range gx.Cells {
		x, y := gx.Cells[i], gy.Cells[i]
		gxx.Cells[i] = x * x
		gyy.Cells[i] = y * y
		gxy.Cells[i] = 2 * x * y
	}
	gxx = gaussianBlur(gxx, blockSigma, workers)
	gyy = gaussianBlur(gyy, blockSigma, workers)
	gxy = gaussianBlur(gxy, blockSigma, workers)

	sin2 := primitives.NewDoubleMatrix(w, h)
	cos2 := primitives.NewDoubleMatrix(w, h)
	for i := range gxx.Cells {
		diff := gxx.Cells[i] - gyy.Cells[i]
		r := math.Hypot(diff, gxy.Cells[i])
		if r == 0 {
			continue
		}
		sin2.Cells[i] = gxy.Cells[i] / r
		cos2.Cells[i] = diff / r
	}
	if smoothSigma > 0 {
		sin2 = gaussianBlur(sin2, smoothSigma, workers)
		cos2 = gaussianBlur(cos2, smoothSigma, workers)
	}

	orient := primitives.NewDoubleMatrix(w, h)
	parallel.Rows(workers, h, func(lo, hi int) {
		for i := lo * w; i < hi*w; i++ {
			s, c := sin2.Cells[i], cos2.Cells[i]
			if math.Abs(s) < 1e-12 && math.Abs(c) < 1e-12 {
				continue
			}
			orient.Cells[i] = wrapAngle(math.Atan2(s, c)/2 + math.Pi/2)
		}
	})
	return orient
}

// wrapAngle folds theta into [0, pi).
func wrapAngle(theta float64) float64 {
	theta = math.Mod(theta, math.Pi)
	if theta < 0 {
		theta += math.Pi
	}
	if theta >= math.Pi {
		theta = 0
	}
	return theta
}
