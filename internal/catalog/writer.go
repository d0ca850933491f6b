package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/banshee-data/lcviewer/internal/db"
)

// Writer ingests objects and forced sources into a catalog database.
type Writer struct {
	db *db.DB
}

func NewWriter(database *db.DB) *Writer {
	return &Writer{db: database}
}

// WriteObject stores an object and its sources in one transaction,
// replacing any rows with the same identifiers.
func (w *Writer) WriteObject(ctx context.Context, obj ObjectRow, sources []Source) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO object (object_id, coord_ra, coord_dec) VALUES (?, ?, ?)`,
		obj.ObjectID, obj.CoordRA, obj.CoordDec); err != nil {
		return fmt.Errorf("failed to insert object %d: %w", obj.ObjectID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO forced_source (
			forced_source_id, object_id, visit, detector, band, midpoint_mjd_tai,
			psf_flux, psf_flux_err, psf_mag, psf_mag_err,
			psf_flux_flag, pixel_flags_suspect, pixel_flags_saturated, pixel_flags_cr, pixel_flags_bad
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare forced source insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range sources {
		if s.ObjectID == 0 {
			s.ObjectID = obj.ObjectID
		}
		if s.ObjectID != obj.ObjectID {
			return fmt.Errorf("forced source %d belongs to object %d, not %d", s.ForcedSourceID, s.ObjectID, obj.ObjectID)
		}
		if _, err := stmt.ExecContext(ctx,
			s.ForcedSourceID, s.ObjectID, s.Visit, s.Detector, s.Band, s.MidpointMjdTai,
			nanToNull(s.PsfFlux), nanToNull(s.PsfFluxErr), nanToNull(s.PsfMag), nanToNull(s.PsfMagErr),
			s.PsfFluxFlag, s.PixelFlagsSuspect, s.PixelFlagsSaturated, s.PixelFlagsCR, s.PixelFlagsBad,
		); err != nil {
			return fmt.Errorf("failed to insert forced source %d: %w", s.ForcedSourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit object %d: %w", obj.ObjectID, err)
	}
	return nil
}

func nanToNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
