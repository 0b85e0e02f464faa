package enhance

import "github.com/high-horse/fingerprint/primitives"

// Binarize marks pixels whose filter response exceeds threshold. Normalize
// maps ridges to positive values, so the foreground is the ridges of the
// capture. A nil mask keeps every pixel eligible.
func Binarize(img *primitives.DoubleMatrix, mask *primitives.BooleanMatrix, threshold float64) *primitives.BooleanMatrix {
	out := primitives.NewBooleanMatrix(img.Width, img.Height)
	for i, v := range img.Cells {
		out.Cells[i] = v > threshold && (mask == nil || mask.Cells[i])
	}
	return out
}
