package match

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high-horse/fingerprint/config"
)

// rectangles draws random high-contrast rectangles on a mid-gray background.
func rectangles(seed int64, w, h int) *image.Gray {
	r := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	for i := 0; i < 40; i++ {
		x, y := r.Intn(w), r.Intn(h)
		rect := image.Rect(x, y, x+10+r.Intn(40), y+10+r.Intn(40))
		level := uint8(20)
		if r.Intn(2) == 0 {
			level = 235
		}
		draw.Draw(img, rect, &image.Uniform{C: color.Gray{Y: level}}, image.Point{}, draw.Src)
	}
	return img
}

func shifted(src *image.Gray, dx, dy int) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	draw.Draw(dst, b, &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	draw.Draw(dst, b.Add(image.Pt(dx, dy)), src, image.Point{}, draw.Src)
	return dst
}

func randomFeatures(seed int64, n int) *Features {
	r := rand.New(rand.NewSource(seed))
	f := &Features{}
	for i := 0; i < n; i++ {
		var d Descriptor
		for w := range d {
			d[w] = r.Uint64()
		}
		f.Keypoints = append(f.Keypoints, Keypoint{X: float64(i), Y: float64(i)})
		f.Descriptors = append(f.Descriptors, d)
	}
	return f
}

// enhancedRidges draws what enhancement leaves of a 264x264 capture: white
// ridges where cos(phase) < 0 inside the filtered square, black elsewhere.
func enhancedRidges(phase func(x, y float64) float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 264, 264))
	for y := 57; y < 207; y++ {
		for x := 57; x < 207; x++ {
			if math.Cos(phase(float64(x), float64(y))) < 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}
	return img
}

// whorl is a spiral of ridges ten pixels apart around (cx, cy).
func whorl(cx, cy, twist float64) *image.Gray {
	return enhancedRidges(func(x, y float64) float64 {
		return 2*math.Pi*math.Hypot(x-cx, y-cy)/10 + twist*math.Atan2(y-cy, x-cx)
	})
}

func stripes(angle float64) *image.Gray {
	sin, cos := math.Sincos(angle)
	return enhancedRidges(func(x, y float64) float64 {
		return 2 * math.Pi * (x*cos + y*sin) / 10
	})
}

func flip(d Descriptor, n int) Descriptor {
	for i := 0; i < n; i++ {
		d[i/64] ^= 1 << (uint(i) % 64)
	}
	return d
}

func TestDescriptorDistance(t *testing.T) {
	var a Descriptor
	assert.Equal(t, 0, a.Distance(a))
	assert.Equal(t, 70, a.Distance(flip(a, 70)))
	b := Descriptor{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
	assert.Equal(t, DescriptorBits, a.Distance(b))
}

func TestScore(t *testing.T) {
	cfg := config.LoadDefaultConfig().Match
	var zero Descriptor
	ones := Descriptor{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
	at := func(x, y, angle float64) Keypoint { return Keypoint{X: x, Y: y, Angle: angle} }

	t.Run("distance threshold", func(t *testing.T) {
		a := &Features{Keypoints: []Keypoint{at(10, 10, 0), at(50, 50, 0)}, Descriptors: []Descriptor{zero, flip(zero, 200)}}
		b := &Features{Keypoints: []Keypoint{at(10, 10, 0), at(50, 50, 0)}, Descriptors: []Descriptor{flip(zero, 44), flip(zero, 120)}}

		// 44 < 45 for the first descriptor; the second is 80 bits from its nearest
		assert.Equal(t, 1, Score(a, b, cfg))
		strict := cfg
		strict.DistanceThreshold = 44
		assert.Equal(t, 0, Score(a, b, strict))
	})

	t.Run("ratio test", func(t *testing.T) {
		a := &Features{Keypoints: []Keypoint{at(0, 0, 0)}, Descriptors: []Descriptor{zero}}
		b := &Features{Keypoints: []Keypoint{at(0, 0, 0), at(40, 40, 0)}, Descriptors: []Descriptor{flip(zero, 10), flip(zero, 11)}}

		assert.Equal(t, 0, Score(a, b, cfg))
		loose := cfg
		loose.RatioThreshold = 1
		assert.Equal(t, 1, Score(a, b, loose))
	})

	t.Run("mutual nearest", func(t *testing.T) {
		a := &Features{Keypoints: []Keypoint{at(0, 0, 0), at(0, 0, 0)}, Descriptors: []Descriptor{flip(zero, 20), flip(zero, 2)}}
		b := &Features{Keypoints: []Keypoint{at(0, 0, 0), at(90, 90, 0)}, Descriptors: []Descriptor{zero, ones}}

		// both pick zero, which only keeps its own nearest
		assert.Equal(t, 1, Score(a, b, cfg))
	})

	t.Run("pose consensus", func(t *testing.T) {
		a := &Features{Keypoints: []Keypoint{at(0, 0, 0), at(100, 0, 0)}, Descriptors: []Descriptor{zero, ones}}
		moved := &Features{Keypoints: []Keypoint{at(30, 20, 0), at(130, 20, 0)}, Descriptors: []Descriptor{zero, ones}}
		scattered := &Features{Keypoints: []Keypoint{at(0, 0, 0), at(0, 100, 0)}, Descriptors: []Descriptor{zero, ones}}
		turned := &Features{Keypoints: []Keypoint{at(0, 0, 90), at(0, 100, 90)}, Descriptors: []Descriptor{zero, ones}}

		assert.Equal(t, 2, Score(a, moved, cfg))
		assert.Equal(t, 1, Score(a, scattered, cfg))
		assert.Equal(t, 2, Score(a, turned, cfg))
	})

	t.Run("empty", func(t *testing.T) {
		a := randomFeatures(1, 5)
		assert.Equal(t, 0, Score(a, &Features{}, cfg))
		assert.Equal(t, 0, Score(nil, a, cfg))
	})
}

func TestCorrespondencesRejectsDuplicates(t *testing.T) {
	var zero Descriptor
	a := &Features{Descriptors: []Descriptor{flip(zero, 3)}}
	b := &Features{Descriptors: []Descriptor{zero, flip(zero, 200)}}
	assert.Equal(t, []correspondence{{i: 0, j: 0}}, correspondences(a, b, 45, 0.8))

	// an exact duplicate makes the second nearest as close as the first
	dup := &Features{Descriptors: []Descriptor{zero, zero}}
	assert.Empty(t, correspondences(a, dup, 45, 0.8))
}

func TestCoverage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	draw.Draw(img, image.Rect(0, 0, 10, 20), &image.Uniform{C: color.Gray{Y: 255}}, image.Point{}, draw.Src)

	assert.InDelta(t, 1, coverage(img, 4, 10, 2), 1e-12)
	assert.Zero(t, coverage(img, 15, 10, 2))
	assert.InDelta(t, 0.4, coverage(img, 10, 10, 2), 1e-12)
	// clipped at the corner, the outside counts as background
	assert.InDelta(t, 9.0/25, coverage(img, 0, 0, 2), 1e-12)
}

func TestToGrayRepacks(t *testing.T) {
	src := rectangles(5, 64, 48)
	sub := src.SubImage(image.Rect(8, 4, 40, 36)).(*image.Gray)

	g := toGray(sub)
	assert.Equal(t, image.Rect(0, 0, 32, 32), g.Rect)
	assert.Equal(t, 32, g.Stride)
	require.Len(t, g.Pix, 32*32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			require.Equal(t, sub.GrayAt(8+x, 4+y), g.GrayAt(x, y), "at %d,%d", x, y)
		}
	}

	padded := &image.Gray{Pix: make([]uint8, 17*10), Stride: 17, Rect: image.Rect(0, 0, 10, 10)}
	padded.Pix[17+3] = 9
	g = toGray(padded)
	assert.Equal(t, 10, g.Stride)
	assert.Equal(t, uint8(9), g.GrayAt(3, 1).Y)

	packed := image.NewGray(image.Rect(0, 0, 10, 10))
	assert.Same(t, packed, toGray(packed))
}

func TestLevelQuotas(t *testing.T) {
	quotas := levelQuotas(500, 4, 1.2)
	sum := 0
	for i, q := range quotas {
		sum += q
		if i > 0 {
			assert.LessOrEqual(t, q, quotas[i-1])
		}
	}
	assert.Equal(t, 500, sum)
}

func TestFastScore(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	draw.Draw(img, image.Rect(10, 10, 20, 20), &image.Uniform{C: color.Gray{Y: 200}}, image.Point{}, draw.Src)

	assert.Positive(t, fastScore(img, 10, 10, 20), "inner corner")
	assert.Zero(t, fastScore(img, 5, 5, 20), "flat")
	assert.Zero(t, fastScore(img, 15, 10, 20), "straight edge")
}

func TestDetect(t *testing.T) {
	cfg := config.LoadDefaultConfig().Match
	img := rectangles(1, 240, 240)

	f := Detect(img, cfg)
	require.Greater(t, f.Len(), 20)
	assert.Len(t, f.Keypoints, f.Len())
	assert.LessOrEqual(t, f.Len(), cfg.Features)
	for _, kp := range f.Keypoints {
		assert.GreaterOrEqual(t, kp.X, float64(cfg.EdgeThreshold))
		assert.GreaterOrEqual(t, kp.Y, float64(cfg.EdgeThreshold))
		assert.Less(t, kp.X, 240.0-float64(cfg.EdgeThreshold)+1)
	}

	again := Detect(img, cfg)
	assert.Equal(t, f.Descriptors, again.Descriptors)
}

func TestDetectBlank(t *testing.T) {
	f := Detect(image.NewGray(image.Rect(0, 0, 100, 100)), config.LoadDefaultConfig().Match)
	assert.Zero(t, f.Len())
	assert.Zero(t, Detect(image.NewGray(image.Rect(0, 0, 30, 30)), config.LoadDefaultConfig().Match).Len())
}

func TestMatchTwo(t *testing.T) {
	cfg := config.LoadDefaultConfig().Match
	a := rectangles(1, 240, 240)
	b := rectangles(2, 240, 240)

	self := MatchTwo(a, a, cfg)
	assert.Greater(t, self, cfg.MinScore)
	assert.LessOrEqual(t, self, Detect(a, cfg).Len())
	assert.LessOrEqual(t, MatchTwo(a, b, cfg), cfg.MinScore)
	assert.Greater(t, MatchTwo(a, shifted(a, 5, 3), cfg), cfg.MinScore)
	assert.Zero(t, MatchTwo(a, image.NewGray(image.Rect(0, 0, 240, 240)), cfg))
}

func TestDetectSkipsBackground(t *testing.T) {
	cfg := config.LoadDefaultConfig().Match
	img := whorl(110, 150, 1)

	f := Detect(img, cfg)
	require.Positive(t, f.Len())
	for _, kp := range f.Keypoints {
		r := int(math.Round(kp.Size / 2))
		assert.Greater(t, coverage(img, int(math.Round(kp.X)), int(math.Round(kp.Y)), r), 0.2)
	}
}

func TestScoreSeparatesFingerprints(t *testing.T) {
	cfg := config.LoadDefaultConfig().Match
	prints := []struct {
		name string
		img  *image.Gray
	}{
		{"whorl a", whorl(110, 150, 1)},
		{"whorl b", whorl(160, 120, 2)},
		{"whorl c", whorl(140, 100, 0)},
		{"stripes", stripes(0.6)},
	}
	features := make([]*Features, len(prints))
	for i, p := range prints {
		features[i] = Detect(p.img, cfg)
	}

	for i, a := range prints {
		for j, b := range prints {
			score := Score(features[i], features[j], cfg)
			switch {
			case i != j:
				assert.LessOrEqual(t, score, cfg.MinScore, "%s against %s", a.name, b.name)
			case a.name != "stripes":
				assert.Greater(t, score, cfg.MinScore, a.name)
			}
		}
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores []int
		want   Result
	}{
		{"empty gallery", nil, Result{Index: -1}},
		{"nothing above minimum", []int{3, 15, 0}, Result{Index: -1}},
		{"unique best", []int{3, 20, 40, 10}, Result{Index: 2, Score: 40, Found: true}},
		{"tie keeps first", []int{16, 30, 30, 29}, Result{Index: 1, Score: 30, Found: true}},
		{"single above minimum", []int{3, 16, 15, 9}, Result{Index: 1, Score: 16, Found: true}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := scan(context.Background(), len(tt.scores), 3, 15, func(_ context.Context, i int) (int, error) {
				return tt.scores[i], nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanError(t *testing.T) {
	boom := errors.New("boom")
	_, err := scan(context.Background(), 4, 2, 15, func(_ context.Context, i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return 20, nil
	})
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scan(ctx, 4, 2, 15, func(context.Context, int) (int, error) { return 20, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatcherScan(t *testing.T) {
	cfg := config.LoadDefaultConfig()
	cfg.Workers = 4
	enrolled := randomFeatures(7, 30)
	m := NewMatcherFromFeatures(cfg, nil, enrolled)

	res, err := m.Scan(context.Background(), []Candidate{
		{Identity: "empty", Features: &Features{}},
		{Identity: "stranger", Features: randomFeatures(8, 30)},
		{Identity: "alice", Features: enrolled},
		{Identity: "alice-again", Features: enrolled},
		{Identity: "no-image"},
	})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "alice", res.Identity)
	assert.Equal(t, 2, res.Index)
	assert.Equal(t, 30, res.Score)

	res, err = m.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMatchAgainstGallery(t *testing.T) {
	cfg := config.LoadDefaultConfig()
	a := rectangles(3, 200, 200)

	res, err := MatchAgainstGallery(context.Background(), cfg, a, []Candidate{
		{Identity: "blank", Image: image.NewGray(image.Rect(0, 0, 200, 200))},
		{Identity: "same", Image: a},
		{Identity: "other", Image: rectangles(4, 200, 200)},
	})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "same", res.Identity)
	assert.Equal(t, 1, res.Index)
}

func TestMatchAgainstGalleryFingerprints(t *testing.T) {
	cfg := config.LoadDefaultConfig()
	gallery := []Candidate{
		{Identity: "bob", Image: whorl(160, 120, 2)},
		{Identity: "alice", Image: whorl(110, 150, 1)},
		{Identity: "carol", Image: stripes(0.6)},
	}

	res, err := MatchAgainstGallery(context.Background(), cfg, whorl(110, 150, 1), gallery)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "alice", res.Identity)
	assert.Equal(t, 1, res.Index)

	res, err = MatchAgainstGallery(context.Background(), cfg, whorl(140, 100, 0), gallery)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, -1, res.Index)
}
