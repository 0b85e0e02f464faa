package match

import "math"

// correspondence links descriptor i of one image to descriptor j of another.
type correspondence struct {
	i, j int
}

type nearest struct {
	index, best, second int
}

// correspondences pairs every descriptor of a with its nearest descriptor of
// b when the pair is mutual, closer than threshold and clearly better than
// the second nearest: best < ratio*second. Ties keep the lower index.
func correspondences(a, b *Features, threshold int, ratio float64) []correspondence {
	reverse := make([]nearest, len(b.Descriptors))
	for j := range reverse {
		reverse[j] = nearest{index: -1, best: DescriptorBits + 1}
	}
	forward := make([]nearest, len(a.Descriptors))
	for i, da := range a.Descriptors {
		nn := nearest{index: -1, best: DescriptorBits + 1, second: DescriptorBits + 1}
		for j, db := range b.Descriptors {
			d := da.Distance(db)
			switch {
			case d < nn.best:
				nn.second, nn.best, nn.index = nn.best, d, j
			case d < nn.second:
				nn.second = d
			}
			if d < reverse[j].best {
				reverse[j].best, reverse[j].index = d, i
			}
		}
		forward[i] = nn
	}

	var out []correspondence
	for i, nn := range forward {
		if nn.index < 0 || nn.best >= threshold {
			continue
		}
		if float64(nn.best) >= ratio*float64(nn.second) || reverse[nn.index].index != i {
			continue
		}
		out = append(out, correspondence{i: i, j: nn.index})
	}
	return out
}

type pose struct {
	rotation, tx, ty int
}

// consensus votes every correspondence into a (rotation, translation) bin and
// returns the largest bin. The translation of a pair is the offset left after
// rotating the a keypoint by the pair's own angle difference.
func consensus(a, b *Features, pairs []correspondence, rotationBin, translationBin float64) int {
	bins := max(int(math.Round(360/rotationBin)), 1)
	votes := make(map[pose]int, len(pairs))
	best := 0
	for _, c := range pairs {
		ka, kb := a.Keypoints[c.i], b.Keypoints[c.j]
		d := math.Mod(kb.Angle-ka.Angle, 360)
		if d < 0 {
			d += 360
		}
		if d > 180 {
			d -= 360
		}
		sin, cos := math.Sincos(d * math.Pi / 180)
		tx := kb.X - (ka.X*cos - ka.Y*sin)
		ty := kb.Y - (ka.X*sin + ka.Y*cos)
		p := pose{
			rotation: (int(math.Round(d/rotationBin))%bins + bins) % bins,
			tx:       int(math.Round(tx / translationBin)),
			ty:       int(math.Round(ty / translationBin)),
		}
		votes[p]++
		best = max(best, votes[p])
	}
	return best
}
