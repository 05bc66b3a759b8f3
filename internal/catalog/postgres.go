package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*Postgres)(nil)

const ddlProjects = `
CREATE TABLE IF NOT EXISTS scribe_projects (
    dir             TEXT         PRIMARY KEY,
    original_file   TEXT         NOT NULL,
    engine          TEXT         NOT NULL DEFAULT '',
    model           TEXT         NOT NULL DEFAULT '',
    language        TEXT         NOT NULL DEFAULT '',
    device          TEXT         NOT NULL DEFAULT '',
    transcribed_at  TIMESTAMPTZ  NOT NULL,
    segments        INTEGER      NOT NULL DEFAULT 0,
    words           INTEGER      NOT NULL DEFAULT 0,
    mean_confidence DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_scribe_projects_transcribed_at
    ON scribe_projects (transcribed_at DESC);
`

// Postgres is a [Store] backed by the scribe_projects table. All methods are
// safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at dsn and runs [Migrate].
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the catalog table and index if they do not exist. It is
// idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlProjects); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Record implements [Store]. An existing row for e.Dir is replaced.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	const q = `
		INSERT INTO scribe_projects
		    (dir, original_file, engine, model, language, device, transcribed_at, segments, words, mean_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dir) DO UPDATE SET
		    original_file   = EXCLUDED.original_file,
		    engine          = EXCLUDED.engine,
		    model           = EXCLUDED.model,
		    language        = EXCLUDED.language,
		    device          = EXCLUDED.device,
		    transcribed_at  = EXCLUDED.transcribed_at,
		    segments        = EXCLUDED.segments,
		    words           = EXCLUDED.words,
		    mean_confidence = EXCLUDED.mean_confidence`

	_, err := p.pool.Exec(ctx, q,
		e.Dir,
		e.OriginalFile,
		e.Engine,
		e.Model,
		e.Language,
		e.Device,
		e.TranscribedAt,
		e.Segments,
		e.Words,
		e.MeanConfidence,
	)
	if err != nil {
		return fmt.Errorf("catalog: record %s: %w", e.Dir, err)
	}
	return nil
}

// List implements [Store].
func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	const q = `
		SELECT dir, original_file, engine, model, language, device, transcribed_at, segments, words, mean_confidence
		FROM   scribe_projects
		ORDER  BY transcribed_at DESC, dir`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(
			&e.Dir,
			&e.OriginalFile,
			&e.Engine,
			&e.Model,
			&e.Language,
			&e.Device,
			&e.TranscribedAt,
			&e.Segments,
			&e.Words,
			&e.MeanConfidence,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	return entries, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
