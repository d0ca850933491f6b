package render

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ZScaleParams tune the zscale interval. The zero value is not useful; start
// from DefaultZScale.
type ZScaleParams struct {
	Samples       int
	Contrast      float64
	MaxReject     float64
	MinPixels     int
	KRej          float64
	MaxIterations int
}

// DefaultZScale matches the IRAF zscale defaults.
var DefaultZScale = ZScaleParams{
	Samples:       1000,
	Contrast:      0.25,
	MaxReject:     0.5,
	MinPixels:     5,
	KRej:          2.5,
	MaxIterations: 5,
}

// ZScale returns display limits for values using DefaultZScale.
func ZScale(values []float64) (vmin, vmax float64) {
	return DefaultZScale.Limits(values)
}

// Limits fits a line to the sorted sample of finite values, iteratively
// rejecting outliers, and uses its slope (scaled by 1/Contrast) around the
// median to tighten the data range. When too few pixels survive rejection
// the full sample range is returned. No finite values gives (0, 0).
func (p ZScaleParams) Limits(values []float64) (vmin, vmax float64) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0
	}

	stride := int(math.Max(1, float64(len(finite))/float64(p.Samples)))
	samples := make([]float64, 0, p.Samples)
	for i := 0; i < len(finite) && len(samples) < p.Samples; i += stride {
		samples = append(samples, finite[i])
	}
	sort.Float64s(samples)

	npix := len(samples)
	vmin, vmax = samples[0], samples[npix-1]

	minpix := p.MinPixels
	if n := int(float64(npix) * p.MaxReject); n > minpix {
		minpix = n
	}
	ngrow := int(float64(npix) * 0.01)
	if ngrow < 1 {
		ngrow = 1
	}

	x := make([]float64, npix)
	for i := range x {
		x[i] = float64(i)
	}
	weights := make([]float64, npix)
	bad := make([]bool, npix)
	flat := make([]float64, npix)

	var slope float64
	ngood, lastNgood := npix, npix+1
	for iter := 0; iter < p.MaxIterations; iter++ {
		if ngood >= lastNgood || ngood < minpix {
			break
		}

		for i := range weights {
			weights[i] = 1
			if bad[i] {
				weights[i] = 0
			}
		}
		intercept, beta := stat.LinearRegression(x, samples, weights, false)
		slope = beta

		good := make([]float64, 0, ngood)
		for i := range samples {
			flat[i] = samples[i] - (intercept + slope*x[i])
			if !bad[i] {
				good = append(good, flat[i])
			}
		}
		threshold := p.KRej * math.Sqrt(stat.PopVariance(good, nil))
		for i, f := range flat {
			if f < -threshold || f > threshold {
				bad[i] = true
			}
		}
		bad = dilate(bad, ngrow)

		lastNgood = ngood
		ngood = 0
		for _, b := range bad {
			if !b {
				ngood++
			}
		}
	}

	if ngood >= minpix {
		if p.Contrast > 0 {
			slope /= p.Contrast
		}
		center := (npix - 1) / 2
		median := sortedMedian(samples)
		vmin = math.Max(vmin, median-float64(center-1)*slope)
		vmax = math.Min(vmax, median+float64(npix-center)*slope)
	}
	return vmin, vmax
}

// dilate grows every rejected pixel across a window of k neighbours,
// centred the way a same-size discrete convolution with a box of width k
// is centred.
func dilate(bad []bool, k int) []bool {
	if k <= 1 {
		return bad
	}
	out := make([]bool, len(bad))
	shift := (k - 1) / 2
	for i := range out {
		hi := i + shift
		for j := hi - k + 1; j <= hi; j++ {
			if j >= 0 && j < len(bad) && bad[j] {
				out[i] = true
				break
			}
		}
	}
	return out
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
