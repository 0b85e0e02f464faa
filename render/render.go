// Package render draws diagnostic images of enhanced fingerprints.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/spakin/netpbm"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/high-horse/fingerprint/match"
)

var (
	keypointColor = color.RGBA{0, 255, 0, 255}
	centerColor   = color.RGBA{255, 0, 0, 255}
	captionColor  = color.RGBA{255, 255, 0, 255}
)

// Keypoints draws each keypoint as a green ring around a red dot, with an
// optional caption in the top-left corner.
func Keypoints(img *image.Gray, kps []match.Keypoint, caption string) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for _, kp := range kps {
		cx, cy := int(kp.X+0.5), int(kp.Y+0.5)
		drawCircle(out, cx, cy, 5, keypointColor)
		drawDisc(out, cx, cy, 1, centerColor)
	}
	if caption != "" {
		drawText(out, basicfont.Face7x13, caption, 4, 13, captionColor)
	}
	return out
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// EncodePGM writes a binary 8-bit PGM.
func EncodePGM(w io.Writer, img *image.Gray) error {
	return netpbm.Encode(w, img, &netpbm.EncodeOptions{Format: netpbm.PGM, MaxValue: 255})
}

func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCircle draws a circle outline using the midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	x, y := radius, 0
	err := 1 - radius
	for x >= y {
		for _, p := range [8][2]int{
			{cx + x, cy + y}, {cx + y, cy + x}, {cx - y, cy + x}, {cx - x, cy + y},
			{cx - x, cy - y}, {cx - y, cy - x}, {cx + y, cy - x}, {cx + x, cy - y},
		} {
			if (image.Point{p[0], p[1]}).In(img.Rect) {
				img.SetRGBA(p[0], p[1], c)
			}
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func drawDisc(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius && (image.Point{cx + dx, cy + dy}).In(img.Rect) {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}
