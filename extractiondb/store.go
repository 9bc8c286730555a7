// Package extractiondb stores extraction results and the files collected for
// them. Every implementation recomputes totals from the full file list on
// each append, and tolerates concurrent appends for the same extraction.
package extractiondb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoesNotExist   = errors.New("extraction does not exist")
	ErrTerminalStatus = errors.New("extraction is already in a terminal state")
)

// Store is the result store used by the crawler and the API.
type Store interface {
	// Create creates a new pending extraction for rootURL.
	Create(ctx context.Context, rootURL string) (*ExtractionResult, error)
	// Get returns the extraction with the given id or ErrDoesNotExist.
	Get(ctx context.Context, id string) (*ExtractionResult, error)
	// Update merges status/error changes into the extraction.
	Update(ctx context.Context, id string, u Update) (*ExtractionResult, error)
	// AppendFile appends a file and recomputes the totals atomically.
	AppendFile(ctx context.Context, id string, f *ExtractedFile) error
}

func newResult(rootURL string) *ExtractionResult {
	return &ExtractionResult{
		ID:          uuid.NewString(),
		URL:         rootURL,
		Status:      StatusPending,
		Files:       []*ExtractedFile{},
		ExtractedAt: time.Now().UTC(),
	}
}

// applyUpdate merges u into r, refusing to move a terminal extraction.
func applyUpdate(r *ExtractionResult, u Update) error {
	if u.Status != nil && *u.Status != r.Status {
		if r.Status.Terminal() {
			return fmt.Errorf("cannot move extraction %s from %s to %s: %w", r.ID, r.Status, *u.Status, ErrTerminalStatus)
		}
		r.Status = *u.Status
	}
	if u.Error != nil {
		r.Error = *u.Error
	}
	return nil
}

// StatusPtr is a convenience for building an Update.
func StatusPtr(s Status) *Status {
	return &s
}

// StringPtr is a convenience for building an Update.
func StringPtr(s string) *string {
	return &s
}
