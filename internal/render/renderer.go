// Package render turns exposure cutouts into annotated raster images:
// reprojection onto a shared frame, zscale display limits and a gonum/plot
// figure with sky coordinate axes.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/lcviewer/internal/butler"
	"github.com/banshee-data/lcviewer/internal/monitoring"
	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// Options control the figure layout.
type Options struct {
	WidthInches        float64
	HeightInches       float64
	DPI                int
	TickSpacingArcsec  float64
	MarkerRadiusArcsec float64
	// Colorbar adds an intensity scale to the right of the image.
	Colorbar bool
}

// DefaultOptions renders an 8x8 inch figure at 200 dpi.
func DefaultOptions() Options {
	return Options{
		WidthInches:        8,
		HeightInches:       8,
		DPI:                200,
		TickSpacingArcsec:  3,
		MarkerRadiusArcsec: 1,
		Colorbar:           true,
	}
}

// Validate rejects layouts that cannot be rasterized.
func (o Options) Validate() error {
	if o.WidthInches <= 0 || o.HeightInches <= 0 {
		return fmt.Errorf("figure size must be positive, got %gx%g in", o.WidthInches, o.HeightInches)
	}
	if o.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %d", o.DPI)
	}
	if o.TickSpacingArcsec <= 0 {
		return fmt.Errorf("tick spacing must be positive, got %g", o.TickSpacingArcsec)
	}
	if o.MarkerRadiusArcsec < 0 {
		return fmt.Errorf("marker radius must not be negative, got %g", o.MarkerRadiusArcsec)
	}
	return nil
}

// PixelSize is the raster size produced with these options.
func (o Options) PixelSize() (w, h int) {
	return int(math.Round(o.WidthInches * float64(o.DPI))), int(math.Round(o.HeightInches * float64(o.DPI)))
}

// Renderer draws panels. It holds no mutable state and is safe for
// concurrent use.
type Renderer struct {
	opts Options
}

func NewRenderer(opts Options) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{opts: opts}, nil
}

func (r *Renderer) Options() Options { return r.opts }

// Panel is one cutout ready to draw.
type Panel struct {
	Pixels pixel.Grid
	// Frame maps Pixels' indices to the sky.
	Frame  wcs.Frame
	Target wcs.SkyPosition
	// Display range; pixels are mapped linearly from VMin (black) to VMax
	// (white).
	VMin, VMax   float64
	Visit        int64
	Detector     int
	ApertureFlux float64
}

// Title is the figure caption for a cutout.
func Title(visit int64, detector int, target wcs.SkyPosition, flux float64) string {
	return fmt.Sprintf("visit: %d, detector: %d, ra=%.5f, dec=%.5f\nap10_flux=%.0f",
		visit, detector, target.RA, target.Dec, flux)
}

// Render draws p as a WidthInches x HeightInches raster.
func (r *Renderer) Render(ctx context.Context, p Panel) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Pixels.Empty() {
		return nil, fmt.Errorf("render: empty pixel grid")
	}

	lo, hi := p.VMin, p.VMax
	if !(hi > lo) {
		hi = lo + 1
	}
	cmap := newGrayMap(lo, hi)

	raster, err := rasterize(p.Pixels, cmap)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	w, h := float64(p.Pixels.Dx()), float64(p.Pixels.Dy())
	spacing := wcs.ArcsecToDeg(r.opts.TickSpacingArcsec)

	fig := plot.New()
	fig.Title.Text = Title(p.Visit, p.Detector, p.Target, p.ApertureFlux)
	fig.X.Label.Text = "RA"
	fig.Y.Label.Text = "Dec"
	fig.X.Tick.Marker = skyTicker{frame: p.Frame, spacing: spacing}
	fig.Y.Tick.Marker = skyTicker{frame: p.Frame, spacing: spacing, dec: true}

	fig.Add(plotter.NewImage(raster, 0, 0, w, h))

	grid := plotter.NewGrid()
	gridColor := color.NRGBA{R: 255, G: 255, B: 255, A: 128}
	grid.Vertical.Color = gridColor
	grid.Vertical.Dashes = nil
	grid.Horizontal.Color = gridColor
	grid.Horizontal.Dashes = nil
	fig.Add(grid)

	if r.opts.MarkerRadiusArcsec > 0 {
		fig.Add(newTargetMarker(p.Frame, p.Target, r.opts.MarkerRadiusArcsec))
	}

	fig.X.Min, fig.X.Max = 0, w
	fig.Y.Min, fig.Y.Max = 0, h

	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.opts.WidthInches)*vg.Inch, vg.Length(r.opts.HeightInches)*vg.Inch),
		vgimg.UseDPI(r.opts.DPI),
	)
	dc := draw.New(canvas)

	if r.opts.Colorbar {
		barWidth := vg.Length(math.Max(0.12*r.opts.WidthInches, 1)) * vg.Inch
		fig.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))

		bar := plot.New()
		bar.HideX()
		bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true, Colors: 256})
		// line the bar up with the image area below the two-line title
		full := dc.Max.X - dc.Min.X
		bar.Draw(draw.Crop(dc, full-barWidth, 0, 0.6*vg.Inch, -0.7*vg.Inch))
	} else {
		fig.Draw(dc)
	}

	return canvas.Image(), nil
}

// upscaleTarget is the minimum side of the raster handed to the plot, so
// the figure's own scaling never blurs individual pixels.
const upscaleTarget = 800

// rasterize maps g through cmap into an image whose first row is the
// highest y, upscaled by an integer nearest-neighbour factor.
func rasterize(g pixel.Grid, cmap *grayMap) (image.Image, error) {
	src := image.NewNRGBA(image.Rect(0, 0, g.Dx(), g.Dy()))
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			c, err := cmap.At(g.Get(x, y))
			if err != nil {
				return nil, err
			}
			src.Set(x, g.Dy()-1-y, c)
		}
	}

	side := g.Dx()
	if g.Dy() > side {
		side = g.Dy()
	}
	factor := int(math.Ceil(float64(upscaleTarget) / float64(side)))
	if factor <= 1 {
		return src, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, g.Dx()*factor, g.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// CutoutRequest names the exposure and position for Renderer.Cutout.
type CutoutRequest struct {
	Store  butler.Store
	ID     butler.DataID
	Target wcs.SkyPosition
	// Size is the side of the display cutout in pixels.
	Size int
	// Output, when set, is the shared frame the cutout is reprojected onto.
	Output *wcs.Frame
	// ApertureSize is the side of the flux aperture; zero means
	// butler.ApertureSize.
	ApertureSize int
}

// Cutout retrieves, reprojects and renders one exposure. The display
// limits come from the aperture cutout around the target.
func (r *Renderer) Cutout(ctx context.Context, req CutoutRequest) (image.Image, error) {
	cut, err := butler.GetCutout(ctx, req.Store, req.ID, req.Target, req.Size)
	if err != nil {
		return nil, err
	}
	ap, err := butler.GetApertureFlux(ctx, req.Store, req.ID, req.Target, req.ApertureSize)
	if err != nil {
		return nil, err
	}

	pixels, frame := cut.Pixels, cut.Frame
	if req.Output != nil {
		pixels, _, err = Reproject(cut.Pixels, cut.Frame, *req.Output)
		if err != nil {
			return nil, fmt.Errorf("reproject %s: %w", cut.ID, err)
		}
		frame = *req.Output
	}

	_, vmax := ZScale(ap.Pixels.Values())
	monitoring.Logf("render: %s box=%v %s vmax=%.3f flux=%.0f", cut.ID, cut.Box, pixels.Stats(), vmax, ap.Flux)

	return r.Render(ctx, Panel{
		Pixels:       pixels,
		Frame:        frame,
		Target:       req.Target,
		VMin:         0,
		VMax:         vmax,
		Visit:        cut.ID.Visit,
		Detector:     cut.ID.Detector,
		ApertureFlux: ap.Flux,
	})
}
