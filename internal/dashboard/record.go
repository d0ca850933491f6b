package dashboard

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/lcviewer/internal/catalog"
)

// FormatRecord renders one light-curve row as aligned "field value" lines,
// starting with its position in the light curve.
func FormatRecord(index int, s catalog.Source) string {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	row := func(name string, value interface{}) {
		fmt.Fprintf(tw, "%s\t%s\n", name, formatValue(value))
	}

	row("index", index)
	row("forcedSourceId", s.ForcedSourceID)
	row("objectId", s.ObjectID)
	row("visit", s.Visit)
	row("detector", s.Detector)
	row("band", s.Band)
	row("midpointMjdTai", s.MidpointMjdTai)
	row("psfFlux", s.PsfFlux)
	row("psfFluxErr", s.PsfFluxErr)
	row("psfMag", s.PsfMag)
	row("psfMagErr", s.PsfMagErr)
	row("psfFlux_flag", s.PsfFluxFlag)
	row("pixelFlags_suspect", s.PixelFlagsSuspect)
	row("pixelFlags_saturated", s.PixelFlagsSaturated)
	row("pixelFlags_cr", s.PixelFlagsCR)
	row("pixelFlags_bad", s.PixelFlagsBad)

	tw.Flush()
	return buf.String()
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}
