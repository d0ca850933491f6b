package wcs

import "math"

// Offset returns the position dist degrees from p along the great circle
// leaving p at bearing (radians, measured from north through east).
func Offset(p SkyPosition, dist, bearing float64) SkyPosition {
	d := dist * deg2rad
	sinDec, cosDec := math.Sincos(p.Dec * deg2rad)
	sinD, cosD := math.Sincos(d)
	sinB, cosB := math.Sincos(bearing)

	dec := math.Asin(sinDec*cosD + cosDec*sinD*cosB)
	ra := p.RA*deg2rad + math.Atan2(sinB*sinD*cosDec, cosD-sinDec*math.Sin(dec))
	return SkyPosition{RA: NormalizeRA(ra / deg2rad), Dec: dec / deg2rad}
}

// Separation is the angular distance between a and b in degrees.
func Separation(a, b SkyPosition) float64 {
	sinDDec := math.Sin((b.Dec - a.Dec) * deg2rad / 2)
	sinDRA := math.Sin((b.RA - a.RA) * deg2rad / 2)
	h := sinDDec*sinDDec + math.Cos(a.Dec*deg2rad)*math.Cos(b.Dec*deg2rad)*sinDRA*sinDRA
	return 2 * math.Asin(math.Min(1, math.Sqrt(h))) / deg2rad
}
