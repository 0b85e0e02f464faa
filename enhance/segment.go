package enhance

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/high-horse/fingerprint/internal/parallel"
	"github.com/high-horse/fingerprint/primitives"
)

type Segmentation struct {
	// Image is the input renormalized with the statistics of valid pixels.
	Image       *primitives.DoubleMatrix
	Mask        *primitives.BooleanMatrix
	BlockSize   int
	ValidBlocks int
}

// Segment marks blockSize blocks whose standard deviation reaches threshold as
// ridge regions. When no block qualifies the image is returned unchanged with
// an empty mask and ErrNoValidRegions.
func Segment(img *primitives.DoubleMatrix, blockSize int, threshold float64, workers int) (*Segmentation, error) {
	w, h := img.Width, img.Height
	bw := (w + blockSize - 1) / blockSize
	bh := (h + blockSize - 1) / blockSize
	mask := primitives.NewBooleanMatrix(w, h)
	valid := make([]bool, bw*bh)

	parallel.Rows(workers, bh, func(lo, hi int) {
		scratch := make([]float64, 0, blockSize*blockSize)
		for by := lo; by < hi; by++ {
			y0, y1 := by*blockSize, min((by+1)*blockSize, h)
			for bx := 0; bx < bw; bx++ {
				x0, x1 := bx*blockSize, min((bx+1)*blockSize, w)
				scratch = scratch[:0]
				for y := y0; y < y1; y++ {
					scratch = append(scratch, img.Row(y)[x0:x1]...)
				}
				if stat.PopStdDev(scratch, nil) < threshold {
					continue
				}
				valid[by*bw+bx] = true
				for y := y0; y < y1; y++ {
					row := mask.Cells[y*w : (y+1)*w]
					for x := x0; x < x1; x++ {
						row[x] = true
					}
				}
			}
		}
	})

	seg := &Segmentation{Mask: mask, BlockSize: blockSize}
	for _, v := range valid {
		if v {
			seg.ValidBlocks++
		}
	}
	if seg.ValidBlocks == 0 {
		seg.Image = img.Clone()
		return seg, ErrNoValidRegions
	}

	values := make([]float64, 0, mask.Count())
	for i, m := range mask.Cells {
		if m {
			values = append(values, img.Cells[i])
		}
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	seg.Image = primitives.NewDoubleMatrix(w, h)
	for i, v := range img.Cells {
		seg.Image.Cells[i] = (v - mean) / std
	}
	return seg, nil
}
