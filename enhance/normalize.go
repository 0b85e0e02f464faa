package enhance

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/high-horse/fingerprint/primitives"
)

// Normalize converts img to gray, equalizes its histogram and rescales it to
// zero mean and unit variance with the sign inverted, so dark ridges come out
// positive. The result is zero-padded on the bottom and right so that both
// dimensions are multiples of blockSize.
func Normalize(img image.Image, blockSize int) (*primitives.DoubleMatrix, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("block size %d: %w", blockSize, ErrInvalidDimensions)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < blockSize || h < blockSize {
		return nil, fmt.Errorf("%dx%d image, block size %d: %w", w, h, blockSize, ErrInvalidDimensions)
	}

	pixels := equalizeHist(grayPixels(img))
	values := make([]float64, len(pixels))
	for i, p := range pixels {
		values[i] = float64(p)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}

	pw := (w + blockSize - 1) / blockSize * blockSize
	ph := (h + blockSize - 1) / blockSize * blockSize
	out := primitives.NewDoubleMatrix(pw, ph)
	for y := 0; y < h; y++ {
		row := out.Row(y)
		for x := 0; x < w; x++ {
			row[x] = (mean - values[y*w+x]) / std
		}
	}
	return out, nil
}

// grayPixels returns the luma of img as a packed width*height slice.
func grayPixels(img image.Image) []uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]uint8, w*h)
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pixels[y*w:(y+1)*w], g.Pix[off:off+w])
		}
		return pixels
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixels[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return pixels
}
