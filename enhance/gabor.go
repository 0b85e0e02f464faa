package enhance

import (
	"math"

	"github.com/high-horse/fingerprint/internal/parallel"
	"github.com/high-horse/fingerprint/primitives"
)

// FilterBank holds even-symmetric Gabor kernels tuned to one ridge frequency,
// one kernel per Step degrees of ridge direction.
type FilterBank struct {
	Frequency float64
	HalfWidth int
	Step      int
	// Kernels[k] is a (2*HalfWidth+1)^2 row-major kernel for direction k*Step.
	Kernels [][]float64
}

// NewFilterBank builds the bank for frequency freq (> 0). kx and ky scale the
// Gaussian envelope across and along the ridges in units of the wavelength.
func NewFilterBank(freq, kx, ky float64, angleStep int) *FilterBank {
	sigmaX := kx / freq
	sigmaY := ky / freq
	half := int(math.Round(3 * math.Max(sigmaX, sigmaY)))
	size := 2*half + 1
	count := 180 / angleStep

	bank := &FilterBank{Frequency: freq, HalfWidth: half, Step: angleStep, Kernels: make([][]float64, count)}
	for k := range bank.Kernels {
		sin, cos := math.Sincos(float64(k*angleStep) * math.Pi / 180)
		kernel := make([]float64, size*size)
		for y := -half; y <= half; y++ {
			for x := -half; x <= half; x++ {
				u := -float64(x)*sin + float64(y)*cos
				v := float64(x)*cos + float64(y)*sin
				envelope := math.Exp(-(u*u/(sigmaX*sigmaX) + v*v/(sigmaY*sigmaY)) / 2)
				kernel[(y+half)*size+x+half] = envelope * math.Cos(2*math.Pi*freq*u)
			}
		}
		bank.Kernels[k] = kernel
	}
	return bank
}

// Index returns the kernel matching ridge direction theta (radians).
func (b *FilterBank) Index(theta float64) int {
	n := len(b.Kernels)
	idx := int(math.Round(theta*180/math.Pi/float64(b.Step))) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Apply correlates each pixel with the kernel of its orientation. Pixels with
// zero frequency or closer than HalfWidth to a border are left at 0.
func (b *FilterBank) Apply(img, orient, freq *primitives.DoubleMatrix, workers int) *primitives.DoubleMatrix {
	w, h := img.Width, img.Height
	out := primitives.NewDoubleMatrix(w, h)
	half := b.HalfWidth
	size := 2*half + 1
	if w < size || h < size {
		return out
	}
	parallel.Rows(workers, h-2*half, func(lo, hi int) {
		for y := lo + half; y < hi+half; y++ {
			for x := half; x < w-half; x++ {
				if freq.Get(x, y) <= 0 {
					continue
				}
				kernel := b.Kernels[b.Index(orient.Get(x, y))]
				var sum float64
				for ky := 0; ky < size; ky++ {
					row := img.Cells[(y-half+ky)*w+x-half : (y-half+ky)*w+x+half+1]
					krow := kernel[ky*size : (ky+1)*size]
					for kx, v := range row {
						sum += v * krow[kx]
					}
				}
				out.Set(x, y, sum)
			}
		}
	})
	return out
}

// Filter enhances img along its ridges. With no representative frequency the
// response is all zeros.
func Filter(img, orient *primitives.DoubleMatrix, freq *FrequencyField, kx, ky float64, angleStep, workers int) *primitives.DoubleMatrix {
	if freq.Median <= 0 {
		return primitives.NewDoubleMatrix(img.Width, img.Height)
	}
	return NewFilterBank(freq.Median, kx, ky, angleStep).Apply(img, orient, freq.Field, workers)
}
