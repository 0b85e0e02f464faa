//go:build gocv

package match

import (
	"encoding/binary"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/high-horse/fingerprint/config"
)

// detect runs OpenCV's ORB. Descriptors are 32 byte rows, read as four
// little-endian words so they compare like the pure Go ones.
func detect(img *image.Gray, cfg config.MatchConfig) *Features {
	g := toGray(img)
	mat, err := gocv.NewMatFromBytes(g.Rect.Dy(), g.Rect.Dx(), gocv.MatTypeCV8U, g.Pix)
	if err != nil {
		return &Features{}
	}
	defer mat.Close()

	orb := gocv.NewORBWithParams(cfg.Features, float32(cfg.ScaleFactor), cfg.Levels,
		cfg.EdgeThreshold, 0, 2, gocv.ORBScoreTypeHarris, cfg.PatchSize, cfg.FastThreshold)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	kps, desc := orb.DetectAndCompute(mat, mask)
	defer desc.Close()
	if desc.Empty() {
		return &Features{}
	}

	data := desc.ToBytes()
	cols := desc.Cols()
	features := &Features{}
	for i, kp := range kps {
		if i >= desc.Rows() {
			break
		}
		r := int(math.Round(kp.Size / 2))
		if cfg.MinCoverage > 0 && coverage(g, int(math.Round(kp.X)), int(math.Round(kp.Y)), r) < cfg.MinCoverage {
			continue
		}
		row := data[i*cols : (i+1)*cols]
		var d Descriptor
		for w := range d {
			d[w] = binary.LittleEndian.Uint64(row[w*8:])
		}
		features.Keypoints = append(features.Keypoints, Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Level:    kp.Octave,
		})
		features.Descriptors = append(features.Descriptors, d)
	}
	return features
}
