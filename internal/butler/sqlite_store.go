package butler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/lcviewer/internal/db"
	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// SQLiteStore serves exposures from the calexp table of the application
// database.
type SQLiteStore struct {
	db *db.DB
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Put inserts or replaces an exposure.
func (s *SQLiteStore) Put(ctx context.Context, e Exposure) error {
	if err := e.Validate(); err != nil {
		return err
	}
	id := e.ID.WithDefaults()
	f := e.Frame
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calexp (
			instrument, visit, detector, min_x, min_y, width, height,
			crpix1, crpix2, crval1, crval2, cd1_1, cd1_2, cd2_1, cd2_2, pixels
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instrument, visit, detector) DO UPDATE SET
			min_x = excluded.min_x, min_y = excluded.min_y,
			width = excluded.width, height = excluded.height,
			crpix1 = excluded.crpix1, crpix2 = excluded.crpix2,
			crval1 = excluded.crval1, crval2 = excluded.crval2,
			cd1_1 = excluded.cd1_1, cd1_2 = excluded.cd1_2,
			cd2_1 = excluded.cd2_1, cd2_2 = excluded.cd2_2,
			pixels = excluded.pixels`,
		id.Instrument, id.Visit, id.Detector,
		e.BBox.Min.X, e.BBox.Min.Y, e.BBox.Dx(), e.BBox.Dy(),
		f.CRPix[0], f.CRPix[1], f.CRVal.RA, f.CRVal.Dec,
		f.CD[0], f.CD[1], f.CD[2], f.CD[3],
		EncodePixels(e.Pixels),
	)
	if err != nil {
		return fmt.Errorf("failed to store exposure %s: %w", id, err)
	}
	return nil
}

type calexpHeader struct {
	bbox  image.Rectangle
	frame wcs.Frame
}

func (s *SQLiteStore) header(ctx context.Context, id DataID) (calexpHeader, error) {
	id = id.WithDefaults()
	var h calexpHeader
	var minX, minY, w, height int
	f := &h.frame
	err := s.db.QueryRowContext(ctx, `
		SELECT min_x, min_y, width, height,
			crpix1, crpix2, crval1, crval2, cd1_1, cd1_2, cd2_1, cd2_2
		FROM calexp WHERE instrument = ? AND visit = ? AND detector = ?`,
		id.Instrument, id.Visit, id.Detector,
	).Scan(&minX, &minY, &w, &height,
		&f.CRPix[0], &f.CRPix[1], &f.CRVal.RA, &f.CRVal.Dec,
		&f.CD[0], &f.CD[1], &f.CD[2], &f.CD[3])
	if errors.Is(err, sql.ErrNoRows) {
		return h, ErrNotFound
	}
	if err != nil {
		return h, fmt.Errorf("failed to read calexp %s: %w", id, err)
	}
	h.bbox = image.Rect(minX, minY, minX+w, minY+height)
	f.Width, f.Height = w, height
	return h, nil
}

func (s *SQLiteStore) WCS(ctx context.Context, id DataID) (wcs.Frame, error) {
	h, err := s.header(ctx, id)
	return h.frame, err
}

func (s *SQLiteStore) DetectorBBox(ctx context.Context, id DataID) (image.Rectangle, error) {
	h, err := s.header(ctx, id)
	return h.bbox, err
}

// Image reads box one row at a time so only the requested pixels leave the
// database.
func (s *SQLiteStore) Image(ctx context.Context, id DataID, box image.Rectangle) (pixel.Grid, error) {
	h, err := s.header(ctx, id)
	if err != nil {
		return pixel.Grid{}, err
	}
	if box.Empty() || !box.In(h.bbox) {
		return pixel.Grid{}, fmt.Errorf("box %v outside detector %v", box, h.bbox)
	}
	id = id.WithDefaults()

	stmt, err := s.db.PrepareContext(ctx, `
		SELECT substr(pixels, ?, ?) FROM calexp
		WHERE instrument = ? AND visit = ? AND detector = ?`)
	if err != nil {
		return pixel.Grid{}, fmt.Errorf("failed to prepare pixel query: %w", err)
	}
	defer stmt.Close()

	stride := h.bbox.Dx()
	rowBytes := box.Dx() * bytesPerPixel
	buf := make([]byte, 0, box.Dy()*rowBytes)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		offset := ((y-h.bbox.Min.Y)*stride + (box.Min.X - h.bbox.Min.X)) * bytesPerPixel
		var row []byte
		// substr is 1-based
		if err := stmt.QueryRowContext(ctx, offset+1, rowBytes, id.Instrument, id.Visit, id.Detector).Scan(&row); err != nil {
			return pixel.Grid{}, fmt.Errorf("failed to read row %d of %s: %w", y, id, err)
		}
		if len(row) != rowBytes {
			return pixel.Grid{}, fmt.Errorf("row %d of %s: got %d bytes, want %d", y, id, len(row), rowBytes)
		}
		buf = append(buf, row...)
	}
	return DecodePixels(buf, box.Dx(), box.Dy())
}
