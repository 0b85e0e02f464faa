package primitives

import (
	"image"

	"golang.org/x/exp/constraints"
)

// DoubleMatrix is a row-major float64 raster, cell (x, y) at Cells[y*Width+x].
type DoubleMatrix struct {
	Width, Height int
	Cells         []float64
}

func NewDoubleMatrix(width, height int) *DoubleMatrix {
	return &DoubleMatrix{Width: width, Height: height, Cells: make([]float64, width*height)}
}

func (m *DoubleMatrix) Get(x, y int) float64 {
	return m.Cells[y*m.Width+x]
}

func (m *DoubleMatrix) Set(x, y int, value float64) {
	m.Cells[y*m.Width+x] = value
}

func (m *DoubleMatrix) Add(x, y int, value float64) {
	m.Cells[y*m.Width+x] += value
}

// Row returns a view of row y sharing storage with m.
func (m *DoubleMatrix) Row(y int) []float64 {
	return m.Cells[y*m.Width : (y+1)*m.Width]
}

func (m *DoubleMatrix) Clone() *DoubleMatrix {
	c := NewDoubleMatrix(m.Width, m.Height)
	copy(c.Cells, m.Cells)
	return c
}

// Crop copies the top-left width x height region.
func (m *DoubleMatrix) Crop(width, height int) *DoubleMatrix {
	c := NewDoubleMatrix(width, height)
	for y := 0; y < height; y++ {
		copy(c.Row(y), m.Cells[y*m.Width:y*m.Width+width])
	}
	return c
}

// BooleanMatrix is a row-major mask of the same layout as DoubleMatrix.
type BooleanMatrix struct {
	Width, Height int
	Cells         []bool
}

func NewBooleanMatrix(width, height int) *BooleanMatrix {
	return &BooleanMatrix{Width: width, Height: height, Cells: make([]bool, width*height)}
}

func (m *BooleanMatrix) Get(x, y int) bool {
	return m.Cells[y*m.Width+x]
}

// GetOr returns fallback for coordinates outside the matrix.
func (m *BooleanMatrix) GetOr(x, y int, fallback bool) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return fallback
	}
	return m.Cells[y*m.Width+x]
}

func (m *BooleanMatrix) Set(x, y int, value bool) {
	m.Cells[y*m.Width+x] = value
}

func (m *BooleanMatrix) Count() int {
	n := 0
	for _, v := range m.Cells {
		if v {
			n++
		}
	}
	return n
}

func (m *BooleanMatrix) Clone() *BooleanMatrix {
	c := NewBooleanMatrix(m.Width, m.Height)
	copy(c.Cells, m.Cells)
	return c
}

// Gray renders the top-left width x height region, true as 255.
func (m *BooleanMatrix) Gray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width]
		for x := range row {
			if m.Cells[y*m.Width+x] {
				row[x] = 255
			}
		}
	}
	return img
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
