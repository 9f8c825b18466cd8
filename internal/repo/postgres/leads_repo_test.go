package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/leadhub/internal/db"
	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/geocoder89/leadhub/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testSchema = "leadhub_repo_test"

func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	// own schema, the router integration tests truncate the public tables concurrently
	admin, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	_, err = admin.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+testSchema)
	admin.Close()
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = testSchema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE lead_sources RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestLeadsRepo_SearchFoldsNonASCII(t *testing.T) {
	pool := openPool(t)
	leads := postgres.NewLeadsRepo(pool, nil)
	ctx := context.Background()

	if _, err := leads.Create(ctx, lead.Lead{
		OrganizationName:  "ÉCOLE Müller",
		ContactPersonName: "Ørsted",
		SourceType:        "Bankers",
		CreatedAt:         time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, q := range []string{"école", "MÜLLER", "ørsted", "ØRSTED"} {
		t.Run(q, func(t *testing.T) {
			rows, total, err := leads.List(ctx, lead.ListFilter{Search: q, Limit: 10})
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if total != 1 || len(rows) != 1 {
				t.Fatalf("expected one match for %q, got total=%d rows=%d", q, total, len(rows))
			}
		})
	}

	orgs, err := leads.Organizations(ctx, "écol")
	if err != nil {
		t.Fatalf("Organizations error: %v", err)
	}
	if len(orgs) != 1 || orgs[0] != "ÉCOLE Müller" {
		t.Fatalf("unexpected organizations %#v", orgs)
	}
}

func TestLeadsRepo_BackfillSearchKeys(t *testing.T) {
	pool := openPool(t)
	leads := postgres.NewLeadsRepo(pool, nil)
	ctx := context.Background()

	// a row as written before the search columns existed
	if _, err := pool.Exec(ctx, `INSERT INTO lead_sources (organization_name, contact_person_name) VALUES ('ÉCOLE', 'Zoë')`); err != nil {
		t.Fatalf("raw insert: %v", err)
	}

	n, err := leads.BackfillSearchKeys(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row backfilled, got %d", n)
	}

	_, total, err := leads.List(ctx, lead.ListFilter{Search: "zoë", Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected backfilled row to match, got total=%d", total)
	}
}
