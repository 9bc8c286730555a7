package extractiondb

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. Readers always receive copies so a poller
// never observes a half-applied append.
type Memory struct {
	mu          sync.Mutex
	extractions map[string]*ExtractionResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{extractions: make(map[string]*ExtractionResult)}
}

func (m *Memory) Create(_ context.Context, rootURL string) (*ExtractionResult, error) {
	r := newResult(rootURL)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractions[r.ID] = r
	return r.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (*ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.extractions[id]
	if !ok {
		return nil, fmt.Errorf("Unable to get extraction %s: %w", id, ErrDoesNotExist)
	}
	return r.Clone(), nil
}

func (m *Memory) Update(_ context.Context, id string, u Update) (*ExtractionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.extractions[id]
	if !ok {
		return nil, fmt.Errorf("Unable to update extraction %s: %w", id, ErrDoesNotExist)
	}
	if err := applyUpdate(r, u); err != nil {
		return nil, err
	}
	if r.Status == StatusCompleted {
		r.Recompute()
	}
	return r.Clone(), nil
}

func (m *Memory) AppendFile(_ context.Context, id string, f *ExtractedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.extractions[id]
	if !ok {
		return fmt.Errorf("Unable to append file to extraction %s: %w", id, ErrDoesNotExist)
	}
	fc := *f
	r.Files = append(r.Files, &fc)
	r.Recompute()
	return nil
}
