package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/leadhub/internal/repo/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin', 'user')),
	must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS lead_sources (
	id BIGSERIAL PRIMARY KEY,
	organization_name TEXT NOT NULL,
	contact_person_name TEXT NOT NULL DEFAULT '',
	contact_details TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT '',
	remarks TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- case-folded copies written by the application; LOWER() depends on the server locale
ALTER TABLE lead_sources ADD COLUMN IF NOT EXISTS organization_search TEXT NOT NULL DEFAULT '';
ALTER TABLE lead_sources ADD COLUMN IF NOT EXISTS contact_search TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS lead_sources_org_idx ON lead_sources (organization_name);
CREATE INDEX IF NOT EXISTS lead_sources_source_idx ON lead_sources (source_type);
`

// EnsureSchema creates the two tables on first boot and fills search columns
// that older rows lack. It is not a migration tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}

	n, err := postgres.NewLeadsRepo(pool, nil).BackfillSearchKeys(ctx)
	if err != nil {
		return fmt.Errorf("backfill search keys: %w", err)
	}
	if n > 0 {
		slog.Default().InfoContext(ctx, "search keys backfilled", "rows", n)
	}
	return nil
}
