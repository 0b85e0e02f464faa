// Package match compares enhanced fingerprints by their keypoint descriptors.
package match

import (
	"image"
	"math/bits"

	"github.com/high-horse/fingerprint/config"
)

const DescriptorBits = 256

// Descriptor is a binary keypoint descriptor compared by Hamming distance.
type Descriptor [DescriptorBits / 64]uint64

func (d Descriptor) Distance(o Descriptor) int {
	n := 0
	for i := range d {
		n += bits.OnesCount64(d[i] ^ o[i])
	}
	return n
}

type Keypoint struct {
	X, Y     float64
	Size     float64
	Angle    float64 // degrees
	Response float64
	Level    int
}

// Features are the keypoints of one image; Descriptors[i] describes Keypoints[i].
type Features struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

func (f *Features) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Descriptors)
}

// Detect extracts keypoints and descriptors from an enhanced fingerprint.
func Detect(img *image.Gray, cfg config.MatchConfig) *Features {
	return detect(img, cfg)
}

// Score is the size of the largest group of correspondences between probe
// and candidate that agree on one rotation and translation. Correspondences
// are mutual nearest neighbours closer than cfg.DistanceThreshold that pass
// the ratio test. It is 0 when either side has no descriptors.
func Score(probe, candidate *Features, cfg config.MatchConfig) int {
	if probe.Len() == 0 || candidate.Len() == 0 {
		return 0
	}
	pairs := correspondences(probe, candidate, cfg.DistanceThreshold, cfg.RatioThreshold)
	return consensus(probe, candidate, pairs, cfg.RotationBin, cfg.TranslationBin)
}

// MatchTwo scores candidate against probe.
func MatchTwo(probe, candidate *image.Gray, cfg config.MatchConfig) int {
	return Score(Detect(probe, cfg), Detect(candidate, cfg), cfg)
}
