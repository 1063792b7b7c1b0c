package pixel

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realenhance/restage/internal/config"
	"github.com/realenhance/restage/internal/domain"
)

// scene builds a synthetic room-like greyscale image: dark background with
// bright rectangles that produce strong, stable Sobel edges.
func scene(w, h int, rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 30
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y && y < h; y++ {
			for x := r.Min.X; x < r.Max.X && x < w; x++ {
				g.Pix[y*g.Stride+x] = 220
			}
		}
	}
	return g
}

func interiorBand(t *testing.T) config.Band {
	t.Helper()
	band, err := config.DefaultConfig().Thresholds.Lookup(domain.StageEnhance, domain.SceneInterior)
	require.NoError(t, err)
	return band
}

func stagingBand(t *testing.T) config.Band {
	t.Helper()
	band, err := config.DefaultConfig().Thresholds.Lookup(domain.StageStaging, domain.SceneInterior)
	require.NoError(t, err)
	return band
}

func TestIdenticalImagesPass(t *testing.T) {
	t.Parallel()

	img := scene(200, 150, image.Rect(40, 30, 90, 110), image.Rect(120, 30, 170, 110))
	a := NewAnalyzer(0.02)

	for _, stage := range domain.Order() {
		res := a.Analyze(img, img, stage, domain.SceneInterior, stagingBand(t))
		assert.True(t, res.OK, "stage %s", stage)
		assert.Empty(t, res.Reason)
		assert.InDelta(t, 1.0, res.Metrics.EdgeSimilarity, 1e-9)
		assert.InDelta(t, 0.0, res.Metrics.BrightnessShift, 1e-9)
	}
}

func TestEdgeSimilarityBoundedAndSymmetric(t *testing.T) {
	t.Parallel()

	a := scene(120, 90, image.Rect(10, 10, 50, 70))
	b := scene(120, 90, image.Rect(60, 10, 110, 70))

	mapA := edgeMap(a)
	mapB := edgeMap(b)

	simAB := mapA.IoU(mapB)
	simBA := mapB.IoU(mapA)

	assert.InDelta(t, simAB, simBA, 1e-12)
	assert.GreaterOrEqual(t, simAB, 0.0)
	assert.LessOrEqual(t, simAB, 1.0)
	assert.InDelta(t, 1.0, mapA.IoU(mapA), 1e-12)
}

func TestEmptyEdgeMapsAreIdentical(t *testing.T) {
	t.Parallel()

	flat := scene(50, 50) // no rectangles, no edges
	assert.InDelta(t, 1.0, edgeMap(flat).IoU(edgeMap(flat)), 1e-12)
}

func TestStructuralChangeFails(t *testing.T) {
	t.Parallel()

	baseline := scene(200, 150, image.Rect(40, 30, 90, 110), image.Rect(120, 30, 170, 110))
	// Both rectangles moved far: geometry rewritten.
	candidate := scene(200, 150, image.Rect(10, 80, 60, 140), image.Rect(140, 5, 190, 60))

	a := NewAnalyzer(0.02)
	res := a.Analyze(baseline, candidate, domain.StageStaging, domain.SceneInterior, stagingBand(t))

	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "edge similarity")
	assert.Less(t, res.Metrics.EdgeSimilarity, 0.6)
}

func TestDimensionMismatchResampledNotFatal(t *testing.T) {
	t.Parallel()

	baseline := scene(200, 150, image.Rect(40, 30, 90, 110))
	// Same aspect ratio, half resolution: must be aligned, not rejected.
	candidate := scene(100, 75, image.Rect(20, 15, 45, 55))

	a := NewAnalyzer(0.02)
	res := a.Analyze(baseline, candidate, domain.StageEnhance, domain.SceneInterior, interiorBand(t))

	assert.True(t, res.OK, "reason: %s", res.Reason)
}

func TestUnresolvableAspectMismatchFails(t *testing.T) {
	t.Parallel()

	baseline := scene(200, 150, image.Rect(40, 30, 90, 110))
	candidate := scene(200, 80, image.Rect(40, 10, 90, 70))

	a := NewAnalyzer(0.02)
	res := a.Analyze(baseline, candidate, domain.StageEnhance, domain.SceneInterior, interiorBand(t))

	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "cannot be aligned")
}

func TestEvaluateBands(t *testing.T) {
	t.Parallel()

	band := config.Band{
		SoftEdgeMin:    0.55,
		HardEdgeMin:    0.40,
		ExtremeEdgeMin: 0.25,
		SoftBrightMax:  0.15,
		HardBrightMax:  0.30,
	}

	tests := []struct {
		name       string
		m          Metrics
		wantOK     bool
		wantReason string
	}{
		{
			name:   "clean pass",
			m:      Metrics{EdgeSimilarity: 0.9, BrightnessShift: 0.05},
			wantOK: true,
		},
		{
			name:   "soft edge dip alone tolerated",
			m:      Metrics{EdgeSimilarity: 0.50, BrightnessShift: 0.05},
			wantOK: true,
		},
		{
			name:       "soft edge dip plus soft brightness breach fails",
			m:          Metrics{EdgeSimilarity: 0.50, BrightnessShift: 0.20},
			wantOK:     false,
			wantReason: "soft floor",
		},
		{
			name:       "hard edge floor fails alone",
			m:          Metrics{EdgeSimilarity: 0.35, BrightnessShift: 0.0},
			wantOK:     false,
			wantReason: "hard floor",
		},
		{
			name:       "hard brightness ceiling fails alone",
			m:          Metrics{EdgeSimilarity: 0.9, BrightnessShift: 0.35},
			wantOK:     false,
			wantReason: "hard ceiling",
		},
		{
			name:       "extreme floor fails unconditionally",
			m:          Metrics{EdgeSimilarity: 0.10, BrightnessShift: 0.0},
			wantOK:     false,
			wantReason: "extreme floor",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ok, reason := evaluateBands(tc.m, band)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantReason != "" {
				assert.Contains(t, reason, tc.wantReason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestZeroToleranceCollapsesSoftRule(t *testing.T) {
	t.Parallel()

	band := stagingBand(t)
	require.Equal(t, band.SoftEdgeMin, band.HardEdgeMin)

	// Just under the collapsed floor: fails even with zero brightness shift.
	ok, reason := evaluateBands(Metrics{EdgeSimilarity: band.HardEdgeMin - 0.01}, band)
	assert.False(t, ok)
	assert.Contains(t, reason, "hard floor")
}

func TestDilate(t *testing.T) {
	t.Parallel()

	b := NewBitmap(5, 5)
	b.Bits[2*5+2] = true // center pixel

	d := b.Dilate(1)
	assert.Equal(t, 9, d.Count())

	// Radius 0 is a no-op returning the same bitmap.
	assert.Equal(t, b, b.Dilate(0))

	// Dilation clamps at the border.
	c := NewBitmap(3, 3)
	c.Bits[0] = true
	assert.Equal(t, 4, c.Dilate(1).Count())
}

func TestDilationAbsorbsJitter(t *testing.T) {
	t.Parallel()

	baseline := scene(200, 150, image.Rect(40, 30, 90, 110))
	// One-pixel shift of the same rectangle.
	jittered := scene(200, 150, image.Rect(41, 31, 91, 111))

	raw := edgeMap(baseline).IoU(edgeMap(jittered))
	dilated := edgeMap(baseline).Dilate(2).IoU(edgeMap(jittered).Dilate(2))

	assert.Greater(t, dilated, raw)
	assert.Greater(t, dilated, 0.8)
}

func TestBrightRatioPercentile(t *testing.T) {
	t.Parallel()

	t.Run("identical images shift zero", func(t *testing.T) {
		t.Parallel()
		img := scene(100, 100, image.Rect(10, 10, 60, 60))
		assert.InDelta(t, brightRatio(img, 0), brightRatio(img, 0), 1e-12)
	})

	t.Run("tie mass at bright end raises ratio", func(t *testing.T) {
		t.Parallel()
		// Half the pixels blown out: the percentile threshold lands inside
		// the bright tie mass, so the above-threshold fraction balloons.
		washed := scene(100, 100, image.Rect(0, 0, 100, 50))
		normal := scene(100, 100, image.Rect(10, 10, 30, 30))
		assert.Greater(t, brightRatio(washed, 0), brightRatio(normal, 0))
	})

	t.Run("sky rows excluded", func(t *testing.T) {
		t.Parallel()
		// Bright band across the top third only.
		withSky := scene(100, 90, image.Rect(0, 0, 100, 30))
		skip := skyRows(90, true)
		assert.Equal(t, 27, skip)
		assert.Less(t, brightRatio(withSky, skip), brightRatio(withSky, 0))
	})

	t.Run("interior keeps all rows", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, skyRows(90, false))
	})
}

func TestPerspectiveDeviation(t *testing.T) {
	t.Parallel()

	baseline := scene(200, 150, image.Rect(40, 30, 90, 110))

	t.Run("identical images have zero deviation", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.0, perspectiveDeviation(baseline, baseline), 1e-9)
	})

	t.Run("deviation is non-negative", func(t *testing.T) {
		t.Parallel()
		other := scene(200, 150, image.Rect(60, 20, 120, 100))
		assert.GreaterOrEqual(t, perspectiveDeviation(baseline, other), 0.0)
	})
}

func TestMetricsMap(t *testing.T) {
	t.Parallel()

	m := Metrics{EdgeSimilarity: 0.9, BrightnessShift: 0.1, PerspectiveDeviation: 2.5}
	got := m.Map()
	assert.InDelta(t, 0.9, got[MetricEdgeSimilarity], 1e-12)
	assert.InDelta(t, 0.1, got[MetricBrightnessShift], 1e-12)
	assert.InDelta(t, 2.5, got[MetricPerspectiveDeviation], 1e-12)
}
