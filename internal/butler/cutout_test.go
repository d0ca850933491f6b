package butler

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

var testID = DataID{Instrument: DefaultInstrument, Visit: 2024120200123, Detector: 4}

// testExposure builds an exposure whose pixel value encodes its detector
// coordinates as 1000*y + x.
func testExposure(id DataID, bbox image.Rectangle) Exposure {
	frame := wcs.NewTangentFrame(150.1, 2.2, 0, 0.2)
	frame.CRPix = [2]float64{float64(bbox.Min.X + bbox.Dx()/2), float64(bbox.Min.Y + bbox.Dy()/2)}
	frame.Width, frame.Height = bbox.Dx(), bbox.Dy()

	g := pixel.NewGrid(bbox.Dx(), bbox.Dy())
	for y := 0; y < bbox.Dy(); y++ {
		for x := 0; x < bbox.Dx(); x++ {
			g.Set(x, y, float64(1000*(y+bbox.Min.Y)+x+bbox.Min.X))
		}
	}
	return Exposure{ID: id, Frame: frame, BBox: bbox, Pixels: g}
}

func newTestMemoryStore(t *testing.T, exposures ...Exposure) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for _, e := range exposures {
		require.NoError(t, s.Put(context.Background(), e))
	}
	return s
}

func TestCutoutBox(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		size int
		want image.Rectangle
	}{
		{"centred", 50, 60, 10, image.Rect(45, 55, 55, 65)},
		{"rounds up at half", 49.5, 59.5, 10, image.Rect(45, 55, 55, 65)},
		{"rounds down below half", 50.49, 60.2, 10, image.Rect(45, 55, 55, 65)},
		{"negative coordinates", -0.6, -0.4, 4, image.Rect(-3, -2, 1, 2)},
		{"odd size", 10, 10, 5, image.Rect(8, 8, 13, 13)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CutoutBox(tt.x, tt.y, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.size, got.Dx())
			assert.Equal(t, tt.size, got.Dy())
		})
	}
}

func TestGetCutout_InBounds(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 400, 300))
	store := newTestMemoryStore(t, exp)
	pos := exp.Frame.PixelToSky(200, 150)

	c, err := GetCutout(context.Background(), store, testID, pos, 100)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(150, 100, 250, 200), c.Box)
	assert.Equal(t, 100, c.Pixels.Dx())
	assert.Equal(t, 100, c.Pixels.Dy())
	assert.Equal(t, float64(1000*100+150), c.Pixels.Get(0, 0))

	// The local frame indexes the cutout array directly.
	x, y, ok := c.Frame.SkyToPixel(pos)
	require.True(t, ok)
	assert.InDelta(t, 50, x, 1e-6)
	assert.InDelta(t, 50, y, 1e-6)
}

func TestGetCutout_ClippedToDetector(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 400, 300))
	store := newTestMemoryStore(t, exp)

	tests := []struct {
		name string
		x, y float64
		want image.Rectangle
	}{
		{"lower left corner", 10, 20, image.Rect(0, 0, 60, 70)},
		{"upper right corner", 390, 280, image.Rect(340, 230, 400, 300)},
		{"just beyond right edge", 420, 150, image.Rect(370, 100, 400, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := exp.Frame.PixelToSky(tt.x, tt.y)
			c, err := GetCutout(context.Background(), store, testID, pos, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Box)
			assert.True(t, c.Box.In(exp.BBox))
			assert.Equal(t, tt.want.Dx(), c.Pixels.Dx())
			assert.Equal(t, tt.want.Dy(), c.Pixels.Dy())
			assert.Equal(t, float64(1000*tt.want.Min.Y+tt.want.Min.X), c.Pixels.Get(0, 0))
		})
	}
}

func TestGetCutout_OffSensor(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 400, 300))
	store := newTestMemoryStore(t, exp)

	far := exp.Frame.PixelToSky(1000, 1000)
	_, err := GetCutout(context.Background(), store, testID, far, 100)
	assert.ErrorIs(t, err, ErrOffSensor)

	// Antipode of the tangent point: not projectable at all.
	behind := wcs.SkyPosition{RA: wcs.NormalizeRA(exp.Frame.CRVal.RA + 180), Dec: -exp.Frame.CRVal.Dec}
	_, err = GetCutout(context.Background(), store, testID, behind, 100)
	assert.ErrorIs(t, err, ErrOffSensor)
}

func TestGetCutout_Errors(t *testing.T) {
	store := newTestMemoryStore(t)

	_, err := GetCutout(context.Background(), store, testID, wcs.SkyPosition{}, 100)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetCutout(context.Background(), store, testID, wcs.SkyPosition{}, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestGetCutout_DefaultInstrument(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 100, 100))
	store := newTestMemoryStore(t, exp)

	c, err := GetCutout(context.Background(), store, DataID{Visit: testID.Visit, Detector: testID.Detector}, exp.Frame.CRVal, 10)
	require.NoError(t, err)
	assert.Equal(t, testID, c.ID)
}

func TestGetApertureFlux(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 100, 100))
	// Constant image so the flux is easy to predict.
	exp.Pixels = pixel.NewFilled(100, 100, 2.5)
	store := newTestMemoryStore(t, exp)

	ap, err := GetApertureFlux(context.Background(), store, testID, exp.Frame.PixelToSky(50, 50), 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(45, 45, 55, 55), ap.Box)
	assert.InDelta(t, 250.0, ap.Flux, 1e-9)

	// Near the edge the aperture is clipped and so is the flux.
	ap, err = GetApertureFlux(context.Background(), store, testID, exp.Frame.PixelToSky(1, 50), ApertureSize)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 45, 6, 55), ap.Box)
	assert.InDelta(t, 150.0, ap.Flux, 1e-9)
}

func TestExposure_Validate(t *testing.T) {
	exp := testExposure(testID, image.Rect(0, 0, 10, 10))
	require.NoError(t, exp.Validate())

	bad := exp
	bad.BBox = image.Rect(0, 0, 10, 11)
	assert.Error(t, bad.Validate())

	bad = exp
	bad.Frame.CD = [4]float64{}
	assert.Error(t, bad.Validate())
}
