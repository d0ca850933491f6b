package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"

	"github.com/banshee-data/lcviewer/internal/wcs"
)

func labels(ticks []plot.Tick) []string {
	out := make([]string, len(ticks))
	for i, t := range ticks {
		out[i] = t.Label
	}
	return out
}

func TestSkyTicker_Dec(t *testing.T) {
	frame := wcs.NewTangentFrame(150, 2, 100, 0.2)
	ticker := skyTicker{frame: frame, spacing: wcs.ArcsecToDeg(3), dec: true}

	ticks := ticker.Ticks(0, 100)
	assert.Equal(t, []string{"01:59:51", "01:59:54", "01:59:57", "02:00:00", "02:00:03", "02:00:06", "02:00:09"}, labels(ticks))

	// 2 deg is the reference dec: pixel row 50, plot coordinate 50.5
	assert.InDelta(t, 50.5, ticks[3].Value, 0.01)
	for i := 1; i < len(ticks); i++ {
		assert.InDelta(t, 15.0, ticks[i].Value-ticks[i-1].Value, 0.01, "3 arcsec at 0.2 arcsec/pixel")
	}
}

func TestSkyTicker_RA(t *testing.T) {
	frame := wcs.NewTangentFrame(150, 0, 100, 0.2)
	ticker := skyTicker{frame: frame, spacing: wcs.ArcsecToDeg(3)}

	ticks := ticker.Ticks(0, 100)
	require.NotEmpty(t, ticks)
	assert.Contains(t, labels(ticks), "150:00:00")
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i].Value, ticks[i-1].Value)
		assert.InDelta(t, 15.0, ticks[i].Value-ticks[i-1].Value, 0.01)
	}
}

func TestSkyTicker_RAWrap(t *testing.T) {
	frame := wcs.NewTangentFrame(0, 0, 100, 0.2)
	ticker := skyTicker{frame: frame, spacing: wcs.ArcsecToDeg(3)}

	got := labels(ticker.Ticks(0, 100))
	assert.Contains(t, got, "00:00:00")
	assert.Contains(t, got, "359:59:57")
	assert.Contains(t, got, "00:00:03")
}

func TestSkyTicker_Degenerate(t *testing.T) {
	frame := wcs.NewTangentFrame(150, 2, 100, 0.2)
	assert.Empty(t, skyTicker{frame: frame}.Ticks(0, 100))
	assert.Empty(t, skyTicker{frame: frame, spacing: 1}.Ticks(5, 5))
}
