package dashboard

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lcviewer/internal/catalog"
)

// ChartID names the chart instance in the rendered page. The click handler
// refers to it as goecharts_<ChartID>.
const ChartID = "lightcurve"

// SelectMessageType tags the postMessage a chart click sends to the parent
// page.
const SelectMessageType = "lcviewer:select"

const (
	chartWidth  = "800px"
	chartHeight = "600px"
	// magPadding is the share of the magnitude range added above and below.
	magPadding = 0.1
)

// chartPoint is one plotted light-curve row. Index is its position in the
// full light curve, which is what a click reports.
type chartPoint struct {
	Index int
	MJD   float64
	Mag   float64
	Err   float64
}

// bandSeries groups plottable rows by band. Rows without a finite epoch or
// magnitude are skipped; their indices are never reported by a click.
func bandSeries(lc []catalog.Source) ([]string, map[string][]chartPoint) {
	series := make(map[string][]chartPoint)
	for i, s := range lc {
		if !isFinite(s.MidpointMjdTai) || !isFinite(s.PsfMag) {
			continue
		}
		series[s.Band] = append(series[s.Band], chartPoint{Index: i, MJD: s.MidpointMjdTai, Mag: s.PsfMag, Err: s.PsfMagErr})
	}

	var bands []string
	for _, b := range bandOrder {
		if _, ok := series[b]; ok {
			bands = append(bands, b)
		}
	}
	var other []string
	for b := range series {
		if _, known := BandColors[b]; !known {
			other = append(other, b)
		}
	}
	sort.Strings(other)
	return append(bands, other...), series
}

// axisRange pads [lo, hi] by frac of its width on both sides. A zero width
// range is widened by pad instead.
func axisRange(lo, hi, frac, pad float64) (float64, float64) {
	span := hi - lo
	if span <= 0 {
		return lo - pad, hi + pad
	}
	return lo - frac*span, hi + frac*span
}

func extent(series map[string][]chartPoint, value func(chartPoint) float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pts := range series {
		for _, p := range pts {
			lo = math.Min(lo, value(p))
			hi = math.Max(hi, value(p))
		}
	}
	return lo, hi
}

// NewChart builds the light-curve scatter of psfMag against epoch, one
// series per band, with psfMagErr error bars and an inverted magnitude
// axis.
func NewChart(obj *catalog.Object) (*charts.Scatter, error) {
	bands, series := bandSeries(obj.LC)
	if len(bands) == 0 {
		return nil, fmt.Errorf("object %d: %w", obj.ObjectID, ErrEmptyLightCurve)
	}

	lo, hi := extent(series, func(p chartPoint) float64 { return p.MJD })
	xMin, xMax := axisRange(lo, hi, 0.02, 1)
	lo, hi = extent(series, func(p chartPoint) float64 { return p.Mag })
	yMin, yMax := axisRange(lo, hi, magPadding, 0.1)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("Light curve %d", obj.ObjectID),
			ChartID:   ChartID,
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%d", obj.ObjectID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:         "value",
			Name:         "midpointMjdTai",
			NameLocation: "middle",
			NameGap:      25,
			Min:          xMin,
			Max:          xMax,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:         "value",
			Name:         "psfMag",
			NameLocation: "middle",
			NameGap:      40,
			Min:          yMin,
			Max:          yMax,
		}),
	)

	errorBars := charts.NewLine()
	for _, band := range bands {
		pts := series[band]
		color := ColorFor(band)

		data := make([]opts.ScatterData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.ScatterData{Value: []interface{}{p.MJD, p.Mag, p.Index}})
		}
		scatter.AddSeries(band, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		)

		// Each bar is a two point segment followed by a break.
		var bars []opts.LineData
		for _, p := range pts {
			if !isFinite(p.Err) {
				continue
			}
			bars = append(bars,
				opts.LineData{Value: []interface{}{p.MJD, p.Mag - p.Err}},
				opts.LineData{Value: []interface{}{p.MJD, p.Mag + p.Err}},
				opts.LineData{Value: []interface{}{p.MJD, "-"}},
			)
		}
		if len(bars) > 0 {
			errorBars.AddSeries(band, bars,
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 1}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
			)
		}
	}
	scatter.Overlap(errorBars)

	scatter.AddJSFuncs(chartScript())
	return scatter, nil
}

// chartScript flips the magnitude axis and forwards clicks on measurement
// points to the embedding page.
func chartScript() string {
	return fmt.Sprintf(`
goecharts_%[1]s.setOption({yAxis: {inverse: true}});
goecharts_%[1]s.on('click', function (params) {
  if (params.seriesType !== 'scatter' || !Array.isArray(params.value)) {
    return;
  }
  window.parent.postMessage({type: '%[2]s', point_inds: [params.value[2]]}, window.location.origin);
});`, ChartID, SelectMessageType)
}

// RenderChart renders the chart page for obj.
func RenderChart(obj *catalog.Object) ([]byte, error) {
	scatter, err := NewChart(obj)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
