package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/fixtures"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// smallOptions keeps test rasters cheap.
func smallOptions() Options {
	o := DefaultOptions()
	o.WidthInches, o.HeightInches, o.DPI = 3, 3, 50
	return o
}

func testPanel() Panel {
	frame := wcs.NewTangentFrame(62.03, -37.45, 20, 0.2)
	return Panel{
		Pixels:       smoothGrid(20, 20),
		Frame:        frame,
		Target:       frame.CRVal,
		VMin:         0,
		VMax:         120,
		Visit:        2024112600100,
		Detector:     4,
		ApertureFlux: 12345.4,
	}
}

func TestTitle(t *testing.T) {
	got := Title(2024112600100, 4, wcs.SkyPosition{RA: 62.030312, Dec: -37.45149}, 12345.6)
	assert.Equal(t, "visit: 2024112600100, detector: 4, ra=62.03031, dec=-37.45149\nap10_flux=12346", got)
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	require.NoError(t, o.Validate())
	w, h := o.PixelSize()
	assert.Equal(t, 1600, w)
	assert.Equal(t, 1600, h)

	bad := o
	bad.DPI = 0
	assert.Error(t, bad.Validate())
	bad = o
	bad.TickSpacingArcsec = -1
	assert.Error(t, bad.Validate())
	_, err := NewRenderer(bad)
	assert.Error(t, err)
}

func TestRenderer_DefaultSize(t *testing.T) {
	r, err := NewRenderer(DefaultOptions())
	require.NoError(t, err)

	img, err := r.Render(context.Background(), testPanel())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1600, 1600), img.Bounds())
}

func TestRenderer_Deterministic(t *testing.T) {
	for _, colorbar := range []bool{true, false} {
		opts := smallOptions()
		opts.Colorbar = colorbar
		r, err := NewRenderer(opts)
		require.NoError(t, err)

		a, err := r.Render(context.Background(), testPanel())
		require.NoError(t, err)
		b, err := r.Render(context.Background(), testPanel())
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 150, 150), a.Bounds())
		assert.Equal(t, a, b)
	}
}

func TestRenderer_Errors(t *testing.T) {
	r, err := NewRenderer(smallOptions())
	require.NoError(t, err)

	_, err = r.Render(context.Background(), Panel{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, testPanel())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRasterize_OriginLower(t *testing.T) {
	g, err := pixel.FromValues(2, 2, []float64{0, 0, 10, 10})
	require.NoError(t, err)

	img, err := rasterize(g, newGrayMap(0, 10))
	require.NoError(t, err)

	b := img.Bounds()
	// grid row 1 (y=1, bright) is the top of the image
	top := color.NRGBAModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.NRGBA)
	bottom := color.NRGBAModel.Convert(img.At(b.Min.X, b.Max.Y-1)).(color.NRGBA)
	assert.Equal(t, uint8(255), top.R)
	assert.Equal(t, uint8(0), bottom.R)
	assert.Equal(t, 400*2, b.Dx(), "upscaled by an integer factor")
}

func TestGrayMap(t *testing.T) {
	m := newGrayMap(0, 100)
	c, err := m.At(50)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255}, c)

	c, err = m.At(-5)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 255}, c)

	c, err = m.At(math.NaN())
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, c, "NaN is transparent")

	assert.Len(t, m.Palette(5).Colors(), 5)

	_, err = newGrayMap(1, 1).At(1)
	assert.Error(t, err)
}

func TestRenderer_Cutout(t *testing.T) {
	ctx := context.Background()
	ds := fixtures.Synthetic(fixtures.DefaultOptions())
	store, err := ds.MemoryStore(ctx)
	require.NoError(t, err)

	r, err := NewRenderer(smallOptions())
	require.NoError(t, err)

	target := ds.Object.Position()
	output := wcs.NewTangentFrame(target.RA, target.Dec, wcs.DefaultSize, wcs.DefaultPixelScale)
	req := CutoutRequest{Store: store, ID: ds.Exposures[0].ID, Target: target, Size: wcs.DefaultSize, Output: &output}

	img, err := r.Cutout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 150), img.Bounds())

	// Without an output frame the native cutout is drawn.
	req.Output = nil
	_, err = r.Cutout(ctx, req)
	require.NoError(t, err)

	// Output frame elsewhere on the sky.
	far := wcs.NewTangentFrame(target.RA+1, target.Dec, wcs.DefaultSize, wcs.DefaultPixelScale)
	req.Output = &far
	_, err = r.Cutout(ctx, req)
	assert.ErrorIs(t, err, ErrNoOverlap)

	// Target off the detector.
	req.Output = &output
	req.Target = wcs.SkyPosition{RA: target.RA + 1, Dec: target.Dec}
	_, err = r.Cutout(ctx, req)
	assert.ErrorIs(t, err, butler.ErrOffSensor)
}
