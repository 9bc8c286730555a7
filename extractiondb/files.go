package extractiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AppendFile inserts a file and recomputes the extraction totals from every
// stored file in the same transaction. The extraction row is locked first,
// which serializes concurrent appends for one extraction.
func (p *Postgres) AppendFile(ctx context.Context, id string, f *ExtractedFile) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Unable to begin append to extraction %s: %w", id, err)
	}
	defer tx.Rollback()

	var status Status
	err = tx.GetContext(ctx, &status,
		`SELECT status FROM extractions WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("Unable to append file to extraction %s: %w", id, ErrDoesNotExist)
	}
	if err != nil {
		return fmt.Errorf("Unable to lock extraction %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO extracted_files
		(id, extraction_id, name, path, type, size, content, mime_type, is_binary, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, id, f.Name, f.Path, string(f.Type), f.Size, f.Content, f.MimeType, f.Binary, f.SourceURL)
	if err != nil {
		return fmt.Errorf("Unable to insert file %s for extraction %s: %w", f.Path, id, err)
	}

	if _, err := tx.ExecContext(ctx, recomputeTotals, id); err != nil {
		return fmt.Errorf("Unable to recompute totals for extraction %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Unable to commit append to extraction %s: %w", id, err)
	}
	return nil
}
