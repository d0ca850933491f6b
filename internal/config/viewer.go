// Package config loads the viewer configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// DefaultConfigPath is where the server looks for a configuration file
// when none is given.
const DefaultConfigPath = "lcviewer.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ViewerConfig holds the tunable parameters of the viewer. Every field is
// optional; the Get* methods supply defaults for omitted fields.
type ViewerConfig struct {
	// Output frame and cutouts
	ImageSize        *int     `json:"image_size,omitempty"`
	PixelScaleArcsec *float64 `json:"pixel_scale_arcsec,omitempty"`
	Instrument       *string  `json:"instrument,omitempty"`
	ApertureSize     *int     `json:"aperture_size,omitempty"`

	// Figure layout
	RenderWidthInches  *float64 `json:"render_width_inches,omitempty"`
	RenderHeightInches *float64 `json:"render_height_inches,omitempty"`
	RenderDPI          *int     `json:"render_dpi,omitempty"`
	TickSpacingArcsec  *float64 `json:"tick_spacing_arcsec,omitempty"`
	MarkerRadiusArcsec *float64 `json:"marker_radius_arcsec,omitempty"`
	Colorbar           *bool    `json:"colorbar,omitempty"`

	// Caches
	ObjectCacheSize *int `json:"object_cache_size,omitempty"`
	ImageCacheSize  *int `json:"image_cache_size,omitempty"`

	FilterFlags   *bool   `json:"filter_flags,omitempty"`
	ButlerTimeout *string `json:"butler_timeout,omitempty"` // duration string like "30s"
	// IdleTimeout closes dashboards nobody has touched for this long; "0"
	// keeps them open.
	IdleTimeout *string `json:"idle_timeout,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyViewerConfig returns a ViewerConfig with all fields unset.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// LoadViewerConfig reads a JSON configuration file. Comments and trailing
// commas are accepted.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseViewerConfig(data)
}

// ParseViewerConfig parses and validates configuration JSON.
func ParseViewerConfig(data []byte) (*ViewerConfig, error) {
	standard, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg := EmptyViewerConfig()
	if err := json.Unmarshal(standard, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *ViewerConfig) Validate() error {
	positiveInts := []struct {
		name string
		v    *int
	}{
		{"image_size", c.ImageSize},
		{"aperture_size", c.ApertureSize},
		{"render_dpi", c.RenderDPI},
		{"object_cache_size", c.ObjectCacheSize},
		{"image_cache_size", c.ImageCacheSize},
	}
	for _, f := range positiveInts {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, *f.v)
		}
	}

	positiveFloats := []struct {
		name string
		v    *float64
	}{
		{"pixel_scale_arcsec", c.PixelScaleArcsec},
		{"render_width_inches", c.RenderWidthInches},
		{"render_height_inches", c.RenderHeightInches},
		{"tick_spacing_arcsec", c.TickSpacingArcsec},
	}
	for _, f := range positiveFloats {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", f.name, *f.v)
		}
	}

	if c.MarkerRadiusArcsec != nil && *c.MarkerRadiusArcsec < 0 {
		return fmt.Errorf("marker_radius_arcsec must be non-negative, got %g", *c.MarkerRadiusArcsec)
	}
	if c.Instrument != nil && *c.Instrument == "" {
		return fmt.Errorf("instrument must not be empty")
	}
	durations := []struct {
		name string
		v    *string
	}{
		{"butler_timeout", c.ButlerTimeout},
		{"idle_timeout", c.IdleTimeout},
	}
	for _, f := range durations {
		if f.v == nil || *f.v == "" {
			continue
		}
		d, err := time.ParseDuration(*f.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", f.name, *f.v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", f.name, d)
		}
	}
	return nil
}

// GetImageSize returns the output frame side in pixels.
func (c *ViewerConfig) GetImageSize() int {
	if c.ImageSize == nil {
		return 100
	}
	return *c.ImageSize
}

// GetPixelScaleArcsec returns the output frame pixel scale.
func (c *ViewerConfig) GetPixelScaleArcsec() float64 {
	if c.PixelScaleArcsec == nil {
		return 0.2
	}
	return *c.PixelScaleArcsec
}

// GetInstrument returns the instrument used to resolve data ids.
func (c *ViewerConfig) GetInstrument() string {
	if c.Instrument == nil {
		return "LSSTComCam"
	}
	return *c.Instrument
}

// GetApertureSize returns the side of the photometry aperture in pixels.
func (c *ViewerConfig) GetApertureSize() int {
	if c.ApertureSize == nil {
		return 10
	}
	return *c.ApertureSize
}

func (c *ViewerConfig) GetRenderWidthInches() float64 {
	if c.RenderWidthInches == nil {
		return 8
	}
	return *c.RenderWidthInches
}

func (c *ViewerConfig) GetRenderHeightInches() float64 {
	if c.RenderHeightInches == nil {
		return 8
	}
	return *c.RenderHeightInches
}

func (c *ViewerConfig) GetRenderDPI() int {
	if c.RenderDPI == nil {
		return 200
	}
	return *c.RenderDPI
}

func (c *ViewerConfig) GetTickSpacingArcsec() float64 {
	if c.TickSpacingArcsec == nil {
		return 3
	}
	return *c.TickSpacingArcsec
}

func (c *ViewerConfig) GetMarkerRadiusArcsec() float64 {
	if c.MarkerRadiusArcsec == nil {
		return 1
	}
	return *c.MarkerRadiusArcsec
}

// GetColorbar reports whether figures carry an intensity scale.
func (c *ViewerConfig) GetColorbar() bool {
	if c.Colorbar == nil {
		return true
	}
	return *c.Colorbar
}

func (c *ViewerConfig) GetObjectCacheSize() int {
	if c.ObjectCacheSize == nil {
		return 1024
	}
	return *c.ObjectCacheSize
}

func (c *ViewerConfig) GetImageCacheSize() int {
	if c.ImageCacheSize == nil {
		return 4098
	}
	return *c.ImageCacheSize
}

// GetFilterFlags reports whether flagged light-curve rows are dropped.
func (c *ViewerConfig) GetFilterFlags() bool {
	if c.FilterFlags == nil {
		return true
	}
	return *c.FilterFlags
}

// GetButlerTimeout returns the remote store request timeout.
func (c *ViewerConfig) GetButlerTimeout() time.Duration {
	if c.ButlerTimeout == nil || *c.ButlerTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.ButlerTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns how long an untouched dashboard stays open. Zero
// disables expiry.
func (c *ViewerConfig) GetIdleTimeout() time.Duration {
	if c.IdleTimeout == nil || *c.IdleTimeout == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(*c.IdleTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// Merge overwrites fields of c with the fields set in o.
func (c *ViewerConfig) Merge(o *ViewerConfig) {
	if o == nil {
		return
	}
	merge := func(dst **int, src *int) {
		if src != nil {
			*dst = ptrInt(*src)
		}
	}
	mergeF := func(dst **float64, src *float64) {
		if src != nil {
			*dst = ptrFloat64(*src)
		}
	}
	mergeB := func(dst **bool, src *bool) {
		if src != nil {
			*dst = ptrBool(*src)
		}
	}
	mergeS := func(dst **string, src *string) {
		if src != nil {
			*dst = ptrString(*src)
		}
	}

	merge(&c.ImageSize, o.ImageSize)
	mergeF(&c.PixelScaleArcsec, o.PixelScaleArcsec)
	mergeS(&c.Instrument, o.Instrument)
	merge(&c.ApertureSize, o.ApertureSize)
	mergeF(&c.RenderWidthInches, o.RenderWidthInches)
	mergeF(&c.RenderHeightInches, o.RenderHeightInches)
	merge(&c.RenderDPI, o.RenderDPI)
	mergeF(&c.TickSpacingArcsec, o.TickSpacingArcsec)
	mergeF(&c.MarkerRadiusArcsec, o.MarkerRadiusArcsec)
	mergeB(&c.Colorbar, o.Colorbar)
	merge(&c.ObjectCacheSize, o.ObjectCacheSize)
	merge(&c.ImageCacheSize, o.ImageCacheSize)
	mergeB(&c.FilterFlags, o.FilterFlags)
	mergeS(&c.ButlerTimeout, o.ButlerTimeout)
	mergeS(&c.IdleTimeout, o.IdleTimeout)
}

// SetInstrument, SetFilterFlags and SetButlerTimeout apply command line
// overrides.
func (c *ViewerConfig) SetInstrument(v string)           { c.Instrument = ptrString(v) }
func (c *ViewerConfig) SetFilterFlags(v bool)            { c.FilterFlags = ptrBool(v) }
func (c *ViewerConfig) SetButlerTimeout(d time.Duration) { c.ButlerTimeout = ptrString(d.String()) }
