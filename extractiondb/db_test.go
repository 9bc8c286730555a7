package extractiondb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "pgx")), mock
}

var extractionColumns = []string{"id", "url", "status", "total_size", "total_files", "extracted_at", "error"}
var fileColumns = []string{"id", "name", "path", "type", "size", "content", "mime_type", "is_binary", "source_url"}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("creates an extraction", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		mock.ExpectExec(`INSERT INTO extractions`).
			WithArgs(sqlmock.AnyArg(), "https://ex.com/", "pending", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		r, err := p.Create(ctx, "https://ex.com/")
		require.NoError(tt, err)
		assert.Equal(tt, StatusPending, r.Status)
		assert.NoError(tt, mock.ExpectationsWereMet())
	})

	t.Run("gets an extraction with its files in order", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		mock.ExpectQuery(`SELECT id, url, status, total_size, total_files, extracted_at, error`).
			WithArgs("x1").
			WillReturnRows(sqlmock.NewRows(extractionColumns).
				AddRow("x1", "https://ex.com/", "completed", 8, 2, now, ""))
		mock.ExpectQuery(`FROM extracted_files`).
			WithArgs("x1").
			WillReturnRows(sqlmock.NewRows(fileColumns).
				AddRow("f1", "s.css", "css/s.css", "css", 5, "a{b}", "text/css", false, "https://ex.com/s.css").
				AddRow("f2", "a.js", "js/a.js", "js", 3, "x()", "application/javascript", false, "https://ex.com/a.js"))

		r, err := p.Get(ctx, "x1")
		require.NoError(tt, err)
		assert.Equal(tt, StatusCompleted, r.Status)
		require.Len(tt, r.Files, 2)
		assert.Equal(tt, "css/s.css", r.Files[0].Path)
		assert.Equal(tt, TypeJS, r.Files[1].Type)
		assert.NoError(tt, mock.ExpectationsWereMet())
	})

	t.Run("maps missing rows to ErrDoesNotExist", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		mock.ExpectQuery(`FROM extractions`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(extractionColumns))

		_, err := p.Get(ctx, "nope")
		assert.True(tt, errors.Is(err, ErrDoesNotExist))
	})

	t.Run("appends a file and recomputes totals in one transaction", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		f := &ExtractedFile{ID: "f1", Name: "s.css", Path: "css/s.css", Type: TypeCSS, Size: 4, Content: "a{b}", MimeType: "text/css"}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM extractions WHERE id = \$1 FOR UPDATE`).
			WithArgs("x1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
		mock.ExpectExec(`INSERT INTO extracted_files`).
			WithArgs("f1", "x1", "s.css", "css/s.css", "css", int64(4), "a{b}", "text/css", false, "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`UPDATE extractions\s+SET total_files`).
			WithArgs("x1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(tt, p.AppendFile(ctx, "x1", f))
		assert.NoError(tt, mock.ExpectationsWereMet())
	})

	t.Run("rolls back an append when the insert fails", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM extractions`).
			WithArgs("x1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
		mock.ExpectExec(`INSERT INTO extracted_files`).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := p.AppendFile(ctx, "x1", &ExtractedFile{ID: "f1", Path: "assets/x"})
		assert.Error(tt, err)
		assert.Contains(tt, err.Error(), "disk full")
		assert.NoError(tt, mock.ExpectationsWereMet())
	})

	t.Run("refuses to update a terminal extraction", func(tt *testing.T) {
		p, mock := newMockPostgres(tt)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM extractions\s+WHERE id = \$1 FOR UPDATE`).
			WithArgs("x1").
			WillReturnRows(sqlmock.NewRows(extractionColumns).
				AddRow("x1", "https://ex.com/", "failed", 0, 0, now, "boom"))
		mock.ExpectRollback()

		_, err := p.Update(ctx, "x1", Update{Status: StatusPtr(StatusCompleted)})
		assert.True(tt, errors.Is(err, ErrTerminalStatus))
		assert.NoError(tt, mock.ExpectationsWereMet())
	})
}
