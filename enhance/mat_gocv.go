//go:build gocv

package enhance

import (
	"encoding/binary"
	"math"

	"gocv.io/x/gocv"
)

// floatMat copies values into a rows x cols CV64F Mat owned by OpenCV.
func floatMat(values []float64, rows, cols int) gocv.Mat {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV64F, buf)
	if err != nil {
		// buf always holds rows*cols values
		panic(err)
	}
	defer view.Close()
	return view.Clone()
}

// floats copies a continuous CV64F Mat back into Go memory.
func floats(m gocv.Mat) []float64 {
	data, err := m.DataPtrFloat64()
	if err != nil {
		panic(err)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out
}
