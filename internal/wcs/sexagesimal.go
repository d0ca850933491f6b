package wcs

import (
	"fmt"
	"math"
)

// FormatDMS formats an angle in degrees as dd:mm:ss, rounded to the
// nearest arcsecond.
func FormatDMS(deg float64) string {
	sign := ""
	if deg < 0 {
		sign = "-"
		deg = -deg
	}

	total := int64(math.Round(deg * 3600))
	d := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if sign != "" && total == 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, d, m, s)
}

// ArcsecToDeg converts arcseconds to degrees.
func ArcsecToDeg(arcsec float64) float64 { return arcsec / 3600.0 }
