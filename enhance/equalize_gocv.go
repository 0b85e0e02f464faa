//go:build gocv

package enhance

import "gocv.io/x/gocv"

func equalizeHist(pixels []uint8) []uint8 {
	src, err := gocv.NewMatFromBytes(1, len(pixels), gocv.MatTypeCV8U, pixels)
	if err != nil {
		return pixels
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.EqualizeHist(src, &dst)
	return dst.ToBytes()
}
