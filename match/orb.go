package match

import (
	"image"
	"math"
	"math/rand"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/high-horse/fingerprint/config"
)

const (
	harrisK      = 0.04
	harrisRadius = 3
	patternSeed  = 0x5eed
	blurSigma    = 2
)

// fastRing is the 16 pixel Bresenham circle of radius 3, clockwise from north.
var fastRing = [16]image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

type pair struct {
	x1, y1, x2, y2 float64
}

// pattern draws the descriptor test pairs from a fixed seed so that every
// process produces comparable descriptors.
func pattern(half int) [DescriptorBits]pair {
	r := rand.New(rand.NewSource(patternSeed))
	limit := float64(half - 1)
	sigma := float64(2*half+1) / 5
	draw := func() float64 {
		return math.Round(math.Max(-limit, math.Min(limit, r.NormFloat64()*sigma)))
	}
	var p [DescriptorBits]pair
	for i := range p {
		p[i] = pair{draw(), draw(), draw(), draw()}
	}
	return p
}

type candidate struct {
	x, y     int
	response float64
}

// detectORB finds oriented FAST corners on an image pyramid, keeps the
// strongest by Harris response and describes them with rotated binary tests.
func detectORB(img *image.Gray, cfg config.MatchConfig) *Features {
	half := cfg.PatchSize / 2
	border := max(cfg.EdgeThreshold, int(math.Ceil(float64(half)*math.Sqrt2))+1)
	tests := pattern(half)
	quotas := levelQuotas(cfg.Features, cfg.Levels, cfg.ScaleFactor)

	features := &Features{}
	base := toGray(img)
	src := base
	for level := 0; level < cfg.Levels; level++ {
		scale := math.Pow(cfg.ScaleFactor, float64(level))
		if level > 0 {
			w := int(math.Round(float64(base.Rect.Dx()) / scale))
			h := int(math.Round(float64(base.Rect.Dy()) / scale))
			if w <= 2*border || h <= 2*border {
				break
			}
			src = toGray(imaging.Resize(base, w, h, imaging.Linear))
		}
		b := src.Rect
		if b.Dx() <= 2*border || b.Dy() <= 2*border {
			break
		}

		corners := covered(base, fastCorners(src, cfg.FastThreshold, border), scale, half, cfg.MinCoverage)
		for i := range corners {
			corners[i].response = harrisResponse(src, corners[i].x, corners[i].y)
		}
		sort.SliceStable(corners, func(i, j int) bool {
			return corners[i].response > corners[j].response
		})
		if len(corners) > quotas[level] {
			corners = corners[:quotas[level]]
		}
		if len(corners) == 0 {
			continue
		}

		smooth := toGray(imaging.Blur(src, blurSigma))
		for _, c := range corners {
			angle := centroidAngle(src, c.x, c.y, half)
			features.Keypoints = append(features.Keypoints, Keypoint{
				X:        float64(c.x) * scale,
				Y:        float64(c.y) * scale,
				Size:     float64(cfg.PatchSize) * scale,
				Angle:    angle * 180 / math.Pi,
				Response: c.response,
				Level:    level,
			})
			features.Descriptors = append(features.Descriptors, describe(smooth, c.x, c.y, angle, &tests))
		}
	}
	return features
}

// levelQuotas spreads n features over the pyramid in proportion to level area.
func levelQuotas(n, levels int, scale float64) []int {
	quotas := make([]int, levels)
	factor := 1 / scale
	per := float64(n) * (1 - factor) / (1 - math.Pow(factor, float64(levels)))
	total := 0
	for i := 0; i < levels-1; i++ {
		quotas[i] = int(math.Round(per))
		total += quotas[i]
		per *= factor
	}
	quotas[levels-1] = max(n-total, 0)
	return quotas
}

// fastCorners returns FAST-9 corners at least border pixels from every edge
// after 3x3 non-maximum suppression on the corner score.
func fastCorners(img *image.Gray, threshold, border int) []candidate {
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	scores := make([]int, w*h)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			scores[y*w+x] = fastScore(img, x, y, threshold)
		}
	}

	var corners []candidate
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s == 0 {
				continue
			}
			if s < scores[(y-1)*w+x-1] || s < scores[(y-1)*w+x] || s < scores[(y-1)*w+x+1] ||
				s < scores[y*w+x-1] || s <= scores[y*w+x+1] ||
				s <= scores[(y+1)*w+x-1] || s <= scores[(y+1)*w+x] || s <= scores[(y+1)*w+x+1] {
				continue
			}
			corners = append(corners, candidate{x: x, y: y})
		}
	}
	return corners
}

// covered keeps the corners whose patch, mapped back onto base, has at least
// the given fraction of foreground pixels. Corners on the edge of the enhanced
// area look alike in every fingerprint.
func covered(base *image.Gray, corners []candidate, scale float64, half int, fraction float64) []candidate {
	if fraction <= 0 {
		return corners
	}
	r := int(math.Round(float64(half) * scale))
	kept := corners[:0]
	for _, c := range corners {
		x := int(math.Round(float64(c.x) * scale))
		y := int(math.Round(float64(c.y) * scale))
		if coverage(base, x, y, r) >= fraction {
			kept = append(kept, c)
		}
	}
	return kept
}

// coverage is the share of nonzero pixels in the square of radius r around
// (x, y). Pixels outside the image count as background.
func coverage(img *image.Gray, x, y, r int) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := 0
	for py := max(y-r, 0); py <= min(y+r, h-1); py++ {
		row := img.Pix[py*img.Stride:]
		for px := max(x-r, 0); px <= min(x+r, w-1); px++ {
			if row[px] != 0 {
				n++
			}
		}
	}
	side := 2*r + 1
	return float64(n) / float64(side*side)
}

// fastScore is 0 unless 9 contiguous ring pixels are all brighter or all
// darker than the centre by more than threshold, in which case it is the summed
// excess contrast of the ring.
func fastScore(img *image.Gray, x, y, threshold int) int {
	center := int(img.Pix[y*img.Stride+x])
	var ring [16]int
	for i, o := range fastRing {
		ring[i] = int(img.Pix[(y+o.Y)*img.Stride+x+o.X])
	}

	brighter, darker := 0, 0
	best := 0
	for i := 0; i < 16+9; i++ {
		v := ring[i%16]
		switch {
		case v > center+threshold:
			brighter++
			darker = 0
		case v < center-threshold:
			darker++
			brighter = 0
		default:
			brighter, darker = 0, 0
		}
		best = max(best, brighter, darker)
	}
	if best < 9 {
		return 0
	}
	score := 0
	for _, v := range ring {
		if d := abs(v-center) - threshold; d > 0 {
			score += d
		}
	}
	return score
}

// harrisResponse evaluates det - k*trace^2 of the Sobel structure tensor over a
// 7x7 window.
func harrisResponse(img *image.Gray, x, y int) float64 {
	at := func(x, y int) float64 { return float64(img.Pix[y*img.Stride+x]) }
	var sxx, syy, sxy float64
	for dy := -harrisRadius; dy <= harrisRadius; dy++ {
		for dx := -harrisRadius; dx <= harrisRadius; dx++ {
			px, py := x+dx, y+dy
			gx := at(px+1, py-1) + 2*at(px+1, py) + at(px+1, py+1) -
				at(px-1, py-1) - 2*at(px-1, py) - at(px-1, py+1)
			gy := at(px-1, py+1) + 2*at(px, py+1) + at(px+1, py+1) -
				at(px-1, py-1) - 2*at(px, py-1) - at(px+1, py-1)
			sxx += gx * gx
			syy += gy * gy
			sxy += gx * gy
		}
	}
	trace := sxx + syy
	return sxx*syy - sxy*sxy - harrisK*trace*trace
}

// centroidAngle is the direction from (x, y) to the intensity centroid of the
// surrounding disc of the given radius.
func centroidAngle(img *image.Gray, x, y, radius int) float64 {
	var m01, m10 float64
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		row := (y + dy) * img.Stride
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			v := float64(img.Pix[row+x+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

// describe evaluates the binary intensity tests rotated by angle around (x, y).
func describe(img *image.Gray, x, y int, angle float64, tests *[DescriptorBits]pair) Descriptor {
	sin, cos := math.Sincos(angle)
	at := func(px, py float64) uint8 {
		rx := int(math.Round(px*cos - py*sin))
		ry := int(math.Round(px*sin + py*cos))
		return img.Pix[(y+ry)*img.Stride+x+rx]
	}
	var d Descriptor
	for i, t := range tests {
		if at(t.x1, t.y1) < at(t.x2, t.y2) {
			d[i/64] |= 1 << (uint(i) % 64)
		}
	}
	return d
}

// toGray converts to a zero-origin gray image whose stride equals its width;
// imaging results are NRGBA.
func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if g, ok := src.(*image.Gray); ok {
		if g.Rect.Min == (image.Point{}) && g.Stride == b.Dx() {
			return g
		}
		for y := 0; y < b.Dy(); y++ {
			i := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], g.Pix[i:i+b.Dx()])
		}
		return dst
	}
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				i := n.PixOffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := uint32(n.Pix[i]), uint32(n.Pix[i+1]), uint32(n.Pix[i+2])
				dst.Pix[y*dst.Stride+x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
			}
		}
		return dst
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
