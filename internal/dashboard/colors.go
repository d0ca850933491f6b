package dashboard

// BandColors maps photometric bands to their plot colors.
var BandColors = map[string]string{
	"u": "#0c71ff",
	"g": "#49be61",
	"r": "#c61c00",
	"i": "#ffc200",
	"z": "#f341a2",
	"y": "#5d0000",
}

// UnknownBandColor is used for bands missing from BandColors.
const UnknownBandColor = "#808080"

// bandOrder fixes the series order of the chart legend.
var bandOrder = []string{"u", "g", "r", "i", "z", "y"}

// ColorFor returns the plot color of band.
func ColorFor(band string) string {
	if c, ok := BandColors[band]; ok {
		return c
	}
	return UnknownBandColor
}
