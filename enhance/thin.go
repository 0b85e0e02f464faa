package enhance

import "github.com/high-horse/fingerprint/primitives"

// Thin erodes foreground regions to one pixel wide skeletons (Zhang-Suen).
func Thin(img *primitives.BooleanMatrix) *primitives.BooleanMatrix {
	out := img.Clone()
	var marked []int
	for {
		changed := false
		for pass := 0; pass < 2; pass++ {
			marked = marked[:0]
			for y := 0; y < out.Height; y++ {
				for x := 0; x < out.Width; x++ {
					if out.Get(x, y) && removable(out, x, y, pass) {
						marked = append(marked, y*out.Width+x)
					}
				}
			}
			for _, i := range marked {
				out.Cells[i] = false
			}
			changed = changed || len(marked) > 0
		}
		if !changed {
			return out
		}
	}
}

func removable(m *primitives.BooleanMatrix, x, y, pass int) bool {
	// P2..P9 clockwise starting north
	p := [8]bool{
		m.GetOr(x, y-1, false),
		m.GetOr(x+1, y-1, false),
		m.GetOr(x+1, y, false),
		m.GetOr(x+1, y+1, false),
		m.GetOr(x, y+1, false),
		m.GetOr(x-1, y+1, false),
		m.GetOr(x-1, y, false),
		m.GetOr(x-1, y-1, false),
	}
	neighbours, transitions := 0, 0
	for i := range p {
		if p[i] {
			neighbours++
		}
		if !p[i] && p[(i+1)%8] {
			transitions++
		}
	}
	if neighbours < 2 || neighbours > 6 || transitions != 1 {
		return false
	}
	if pass == 0 {
		return !(p[0] && p[2] && p[4]) && !(p[2] && p[4] && p[6])
	}
	return !(p[0] && p[2] && p[6]) && !(p[0] && p[4] && p[6])
}
