package enhance

import (
	"math"

	"golang.org/x/exp/slices"

	"github.com/high-horse/fingerprint/internal/parallel"
	"github.com/high-horse/fingerprint/primitives"
)

// PeakTolerance is the slack allowed between a profile sample and its dilated
// value for the sample to count as a peak.
const PeakTolerance = 1e-3

type FrequencyParams struct {
	BlockSize     int
	WindowSize    int
	MinWaveLength float64
	MaxWaveLength float64
}

type FrequencyField struct {
	// Field holds Median on every valid pixel and 0 elsewhere.
	Field *primitives.DoubleMatrix
	// Median is the representative ridge frequency in cycles per pixel, 0 if
	// no block yielded a plausible wavelength.
	Median float64
	// Blocks are the raw per-block estimates in row-major block order.
	Blocks           []float64
	BlocksX, BlocksY int
}

// Frequency estimates the ridge frequency of every complete block, then
// replaces the local estimates with their median over blocks that contain
// valid pixels.
func Frequency(img *primitives.DoubleMatrix, mask *primitives.BooleanMatrix, orient *primitives.DoubleMatrix, p FrequencyParams, workers int) *FrequencyField {
	n := p.BlockSize
	bx, by := img.Width/n, img.Height/n
	ff := &FrequencyField{
		Field:   primitives.NewDoubleMatrix(img.Width, img.Height),
		Blocks:  make([]float64, bx*by),
		BlocksX: bx,
		BlocksY: by,
	}
	hasValid := make([]bool, bx*by)

	parallel.Rows(workers, by, func(lo, hi int) {
		block := make([]float64, n*n)
		angles := make([]float64, n*n)
		for j := lo; j < hi; j++ {
			for i := 0; i < bx; i++ {
				x0, y0 := i*n, j*n
				valid := false
				for y := 0; y < n; y++ {
					copy(block[y*n:(y+1)*n], img.Row(y0 + y)[x0:x0+n])
					copy(angles[y*n:(y+1)*n], orient.Row(y0 + y)[x0:x0+n])
					if !valid {
						for x := 0; x < n; x++ {
							if mask.Get(x0+x, y0+y) {
								valid = true
								break
							}
						}
					}
				}
				hasValid[j*bx+i] = valid
				ff.Blocks[j*bx+i] = blockFrequency(block, n, meanOrientation(angles), p)
			}
		}
	})

	var freqs []float64
	for i, f := range ff.Blocks {
		if f > 0 && hasValid[i] {
			freqs = append(freqs, f)
		}
	}
	ff.Median = median(freqs)
	if ff.Median > 0 {
		for i, m := range mask.Cells {
			if m {
				ff.Field.Cells[i] = ff.Median
			}
		}
	}
	return ff
}

// meanOrientation averages doubled angles so that 0 and pi agree.
func meanOrientation(angles []float64) float64 {
	var s, c float64
	for _, a := range angles {
		s += math.Sin(2 * a)
		c += math.Cos(2 * a)
	}
	return math.Atan2(s, c) / 2
}

// blockFrequency rotates an n*n block so its ridges run vertically and counts
// the peaks of the column-sum profile of the central crop.
func blockFrequency(block []float64, n int, theta float64, p FrequencyParams) float64 {
	rotated := rotate(block, n, theta+math.Pi/2)

	crop := int(float64(n) / math.Sqrt2)
	off := (n - crop) / 2
	profile := make([]float64, crop)
	for y := off; y < off+crop; y++ {
		row := rotated[y*n+off : y*n+off+crop]
		for x, v := range row {
			profile[x] += v
		}
	}

	mean := 0.0
	for _, v := range profile {
		mean += v
	}
	mean /= float64(len(profile))

	dilated := dilate(profile, p.WindowSize)
	var peaks []int
	for i, v := range profile {
		if math.Abs(dilated[i]-v) < PeakTolerance && v > mean {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) < 2 {
		return 0
	}
	wave := float64(peaks[len(peaks)-1]-peaks[0]) / float64(len(peaks)-1)
	if wave < p.MinWaveLength || wave > p.MaxWaveLength {
		return 0
	}
	return 1 / wave
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
