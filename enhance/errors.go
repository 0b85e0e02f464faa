package enhance

import "errors"

var (
	// ErrInvalidDimensions is returned for images smaller than one block.
	ErrInvalidDimensions = errors.New("image is smaller than the block size")
	// ErrNoValidRegions means segmentation found no ridge texture. It is not
	// fatal: results accompanying it are complete and entirely background.
	ErrNoValidRegions = errors.New("no valid ridge regions")
	ErrTimeout        = errors.New("enhancement timed out")
)
