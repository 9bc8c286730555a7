package extractiondb

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
)

// Schema creates the tables used by the Postgres store.
const Schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	total_size   BIGINT NOT NULL DEFAULT 0,
	total_files  INTEGER NOT NULL DEFAULT 0,
	extracted_at TIMESTAMPTZ NOT NULL,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS extracted_files (
	seq           BIGSERIAL PRIMARY KEY,
	id            TEXT NOT NULL UNIQUE,
	extraction_id TEXT NOT NULL REFERENCES extractions (id),
	name          TEXT NOT NULL,
	path          TEXT NOT NULL,
	type          TEXT NOT NULL,
	size          BIGINT NOT NULL,
	content       TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	is_binary     BOOLEAN NOT NULL DEFAULT FALSE,
	source_url    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS extracted_files_extraction_id_idx ON extracted_files (extraction_id, seq);
`

// Postgres represents a Postgres-backed Store.
type Postgres struct {
	db *sqlx.DB
}

// New creates a new Postgres client.
func New(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, err
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("Unable to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
