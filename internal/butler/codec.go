package butler

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/lcviewer/internal/pixel"
)

// Pixels travel as row-major little-endian float32, first row lowest y.
const bytesPerPixel = 4

// EncodePixels writes g in the wire/storage format.
func EncodePixels(g pixel.Grid) []byte {
	buf := make([]byte, g.Len()*bytesPerPixel)
	for i, v := range g.Values() {
		binary.LittleEndian.PutUint32(buf[i*bytesPerPixel:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodePixels parses a w x h grid from buf.
func DecodePixels(buf []byte, w, h int) (pixel.Grid, error) {
	if w < 0 || h < 0 || len(buf) != w*h*bytesPerPixel {
		return pixel.Grid{}, fmt.Errorf("pixel payload of %d bytes does not hold %dx%d float32 values", len(buf), w, h)
	}
	values := make([]float64, w*h)
	for i := range values {
		values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerPixel:])))
	}
	return pixel.FromValues(w, h, values)
}

// ReadPixels reads exactly w x h pixels from r.
func ReadPixels(r io.Reader, w, h int) (pixel.Grid, error) {
	buf := make([]byte, w*h*bytesPerPixel)
	if _, err := io.ReadFull(r, buf); err != nil {
		return pixel.Grid{}, fmt.Errorf("reading %dx%d pixels: %w", w, h, err)
	}
	return DecodePixels(buf, w, h)
}
