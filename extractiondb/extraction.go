package extractiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const selectExtraction = `SELECT id, url, status, total_size, total_files, extracted_at, error
	FROM extractions
	WHERE id = $1`

const selectFiles = `SELECT id, name, path, type, size, content, mime_type, is_binary, source_url
	FROM extracted_files
	WHERE extraction_id = $1
	ORDER BY seq ASC`

const recomputeTotals = `UPDATE extractions
	SET total_files = totals.n, total_size = totals.total
	FROM (SELECT COUNT(*) AS n, COALESCE(SUM(size), 0) AS total
		FROM extracted_files
		WHERE extraction_id = $1) AS totals
	WHERE extractions.id = $1`

// Create creates a new pending extraction.
func (p *Postgres) Create(ctx context.Context, rootURL string) (*ExtractionResult, error) {
	r := newResult(rootURL)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO extractions
		(id, url, status, total_size, total_files, extracted_at, error)
		VALUES ($1, $2, $3, 0, 0, $4, '')`, r.ID, r.URL, string(r.Status), r.ExtractedAt)
	if err != nil {
		return nil, fmt.Errorf("Unable to create extraction with url %s: %w", rootURL, err)
	}
	return r, nil
}

// Get returns the extraction associated with the given id, files included.
func (p *Postgres) Get(ctx context.Context, id string) (*ExtractionResult, error) {
	var r ExtractionResult
	err := p.db.GetContext(ctx, &r, selectExtraction, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Unable to get extraction %s: %w", id, ErrDoesNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to get extraction %s: %w", id, err)
	}

	files := []*ExtractedFile{}
	if err := p.db.SelectContext(ctx, &files, selectFiles, id); err != nil {
		return nil, fmt.Errorf("Unable to get files for extraction %s: %w", id, err)
	}
	r.Files = files
	return &r, nil
}

// Update merges status and error changes. The row is locked for the duration
// of the transition check so two writers cannot both leave a terminal state.
func (p *Postgres) Update(ctx context.Context, id string, u Update) (*ExtractionResult, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Unable to begin update of extraction %s: %w", id, err)
	}
	defer tx.Rollback()

	var r ExtractionResult
	err = tx.GetContext(ctx, &r, selectExtraction+` FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Unable to update extraction %s: %w", id, ErrDoesNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to update extraction %s: %w", id, err)
	}
	if err := applyUpdate(&r, u); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE extractions
		SET status = $2, error = $3
		WHERE id = $1`, id, string(r.Status), r.Error)
	if err != nil {
		return nil, fmt.Errorf("Unable to update extraction %s: %w", id, err)
	}
	if r.Status == StatusCompleted {
		if _, err := tx.ExecContext(ctx, recomputeTotals, id); err != nil {
			return nil, fmt.Errorf("Unable to recompute totals for extraction %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Unable to commit update of extraction %s: %w", id, err)
	}
	return p.Get(ctx, id)
}
