//go:build !gocv

package match

import (
	"image"

	"github.com/high-horse/fingerprint/config"
)

func detect(img *image.Gray, cfg config.MatchConfig) *Features {
	return detectORB(img, cfg)
}
