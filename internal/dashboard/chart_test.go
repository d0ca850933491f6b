package dashboard

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lcviewer/internal/catalog"
)

func testObject() *catalog.Object {
	return &catalog.Object{
		ObjectRow: catalog.ObjectRow{ObjectID: 42, CoordRA: 62.1, CoordDec: -37.2},
		LC: []catalog.Source{
			{Band: "r", MidpointMjdTai: 60000, PsfMag: 21.0, PsfMagErr: 0.1},
			{Band: "g", MidpointMjdTai: 60001, PsfMag: 22.0, PsfMagErr: 0.2},
			{Band: "r", MidpointMjdTai: 60002, PsfMag: math.NaN(), PsfMagErr: math.NaN()},
			{Band: "X", MidpointMjdTai: 60003, PsfMag: 20.0, PsfMagErr: math.NaN()},
			{Band: "r", MidpointMjdTai: 60004, PsfMag: 21.5, PsfMagErr: 0.1},
		},
	}
}

func TestBandSeries(t *testing.T) {
	bands, series := bandSeries(testObject().LC)
	assert.Equal(t, []string{"g", "r", "X"}, bands)

	want := map[string][]chartPoint{
		"g": {{Index: 1, MJD: 60001, Mag: 22.0, Err: 0.2}},
		"r": {{Index: 0, MJD: 60000, Mag: 21.0, Err: 0.1}, {Index: 4, MJD: 60004, Mag: 21.5, Err: 0.1}},
		"X": {{Index: 3, MJD: 60003, Mag: 20.0, Err: math.NaN()}},
	}
	if diff := cmp.Diff(want, series, cmp.Comparer(func(a, b float64) bool {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	})); diff != "" {
		t.Errorf("bandSeries() mismatch (-want +got):\n%s", diff)
	}
}

func TestAxisRange(t *testing.T) {
	lo, hi := axisRange(20, 22, magPadding, 0.1)
	assert.InDelta(t, 19.8, lo, 1e-12)
	assert.InDelta(t, 22.2, hi, 1e-12)

	lo, hi = axisRange(21, 21, magPadding, 0.1)
	assert.InDelta(t, 20.9, lo, 1e-12)
	assert.InDelta(t, 21.1, hi, 1e-12)
}

func TestRenderChart(t *testing.T) {
	html, err := RenderChart(testObject())
	require.NoError(t, err)
	page := string(html)

	for _, want := range []string{
		"goecharts_" + ChartID,
		SelectMessageType,
		"inverse: true",
		"midpointMjdTai",
		"psfMag",
		"#49be61",
		"#c61c00",
		UnknownBandColor,
		"800px",
		"600px",
		"window.location.origin",
	} {
		assert.Contains(t, page, want)
	}
	assert.NotContains(t, page, "'*'")
}

func TestRenderChart_NothingToPlot(t *testing.T) {
	obj := &catalog.Object{LC: []catalog.Source{{Band: "g", MidpointMjdTai: 1, PsfMag: math.NaN()}}}
	_, err := RenderChart(obj)
	assert.ErrorIs(t, err, ErrEmptyLightCurve)
}
