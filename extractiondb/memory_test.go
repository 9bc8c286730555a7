package extractiondb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(name, content string) *ExtractedFile {
	return &ExtractedFile{
		ID:       name,
		Name:     name,
		Path:     "assets/" + name,
		Type:     TypeOther,
		Content:  content,
		Size:     int64(len(content)),
		MimeType: "text/plain",
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending extractions with empty totals", func(tt *testing.T) {
		m := NewMemory()
		r, err := m.Create(ctx, "https://ex.com/")
		require.NoError(tt, err)
		assert.NotEmpty(tt, r.ID)
		assert.Equal(tt, StatusPending, r.Status)
		assert.Equal(tt, "https://ex.com/", r.URL)
		assert.Empty(tt, r.Files)
		assert.False(tt, r.ExtractedAt.IsZero())
	})

	t.Run("returns ErrDoesNotExist for unknown ids", func(tt *testing.T) {
		m := NewMemory()
		_, err := m.Get(ctx, "missing")
		assert.True(tt, errors.Is(err, ErrDoesNotExist))
		err = m.AppendFile(ctx, "missing", file("a", "a"))
		assert.True(tt, errors.Is(err, ErrDoesNotExist))
		_, err = m.Update(ctx, "missing", Update{Status: StatusPtr(StatusProcessing)})
		assert.True(tt, errors.Is(err, ErrDoesNotExist))
	})

	t.Run("keeps totals equal to the file list under concurrent appends", func(tt *testing.T) {
		m := NewMemory()
		r, err := m.Create(ctx, "https://ex.com/")
		require.NoError(tt, err)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(tt, m.AppendFile(ctx, r.ID, file(fmt.Sprintf("f%d", i), fmt.Sprintf("content-%d", i))))
			}(i)
		}
		wg.Wait()

		got, err := m.Get(ctx, r.ID)
		require.NoError(tt, err)
		assert.Len(tt, got.Files, 50)
		assert.Equal(tt, 50, got.TotalFiles)
		var sum int64
		for _, f := range got.Files {
			sum += f.Size
		}
		assert.Equal(tt, sum, got.TotalSize)
	})

	t.Run("returned copies do not alias stored state", func(tt *testing.T) {
		m := NewMemory()
		r, _ := m.Create(ctx, "https://ex.com/")
		require.NoError(tt, m.AppendFile(ctx, r.ID, file("a", "abc")))
		got, _ := m.Get(ctx, r.ID)
		got.Files[0].Content = "mutated"
		again, _ := m.Get(ctx, r.ID)
		assert.Equal(tt, "abc", again.Files[0].Content)
	})

	t.Run("refuses transitions out of terminal states", func(tt *testing.T) {
		m := NewMemory()
		r, _ := m.Create(ctx, "https://ex.com/")
		_, err := m.Update(ctx, r.ID, Update{Status: StatusPtr(StatusProcessing)})
		require.NoError(tt, err)
		done, err := m.Update(ctx, r.ID, Update{Status: StatusPtr(StatusCompleted)})
		require.NoError(tt, err)
		assert.Equal(tt, StatusCompleted, done.Status)

		_, err = m.Update(ctx, r.ID, Update{Status: StatusPtr(StatusFailed), Error: StringPtr("late")})
		assert.True(tt, errors.Is(err, ErrTerminalStatus))
		got, _ := m.Get(ctx, r.ID)
		assert.Equal(tt, StatusCompleted, got.Status)
		assert.Empty(tt, got.Error)
	})
}

func TestExtractionResultHelpers(t *testing.T) {
	r := &ExtractionResult{Files: []*ExtractedFile{file("a", "12345"), file("b", "12")}}
	r.Recompute()
	assert.Equal(t, 2, r.TotalFiles)
	assert.Equal(t, int64(7), r.TotalSize)

	s := r.Summary()
	assert.Empty(t, s.Files[0].Content)
	assert.Equal(t, "12345", r.Files[0].Content)

	f, ok := r.FileByID("b")
	assert.True(t, ok)
	assert.Equal(t, "12", f.Content)
	_, ok = r.FileByID("c")
	assert.False(t, ok)
}
