package postgres

import (
	"context"
	"fmt"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/repo/filter"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewLeadsRepo(pool *pgxpool.Pool, prom *observability.Prom) *LeadsRepo {
	return &LeadsRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *LeadsRepo) Create(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	err := observe(r.prom, "leads.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO lead_sources
			(organization_name, contact_person_name, contact_details, address, email, source_type, remarks, created_at,
			 organization_search, contact_search)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id`,
			l.OrganizationName, l.ContactPersonName, l.ContactDetails, l.Address, l.Email, l.SourceType, l.Remarks, l.CreatedAt,
			lead.SearchKey(l.OrganizationName), lead.SearchKey(l.ContactPersonName),
		).Scan(&l.ID)
	})

	if err != nil {
		return lead.Lead{}, err
	}

	return l, nil
}

func (r *LeadsRepo) List(ctx context.Context, f lead.ListFilter) ([]lead.Lead, int, error) {
	clause := filter.Build(f, filter.Postgres)

	var total int
	err := observe(r.prom, "leads.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lead_sources`+clause.SQL(), clause.Args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	args := append([]any{}, clause.Args...)
	query := `SELECT id, organization_name, contact_person_name, contact_details, address, email, source_type, remarks, created_at
		FROM lead_sources` + clause.SQL() + " ORDER BY " + filter.OrderBy(f.Sort)

	// stable ordering for pagination
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	output := make([]lead.Lead, 0, f.Limit)

	err = observe(r.prom, "leads.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var l lead.Lead
			err = rows.Scan(&l.ID, &l.OrganizationName, &l.ContactPersonName, &l.ContactDetails,
				&l.Address, &l.Email, &l.SourceType, &l.Remarks, &l.CreatedAt)
			if err != nil {
				return err
			}
			output = append(output, l)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

// Organizations returns the distinct organization names, optionally narrowed to a
// case-insensitive substring for autocomplete.
func (r *LeadsRepo) Organizations(ctx context.Context, term string) ([]string, error) {
	query := `SELECT DISTINCT organization_name FROM lead_sources`
	var args []any

	if term != "" {
		query += ` WHERE organization_search LIKE $1 ESCAPE '\'`
		args = append(args, filter.ContainsPattern(term))
	}
	query += ` ORDER BY organization_name ASC`

	out := make([]string, 0)
	err := observe(r.prom, "leads.organizations", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, name)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// BackfillSearchKeys fills the folded search columns of rows written before
// they existed. It returns the number of rows updated.
func (r *LeadsRepo) BackfillSearchKeys(ctx context.Context) (int, error) {
	type pending struct {
		id           int64
		org, contact string
	}

	var todo []pending
	err := observe(r.prom, "leads.backfill_select", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, organization_name, contact_person_name FROM lead_sources
			WHERE organization_search = '' AND organization_name <> ''`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.org, &p.contact); err != nil {
				return err
			}
			todo = append(todo, p)
		}
		return rows.Err()
	})
	if err != nil {
		return 0, err
	}

	for _, p := range todo {
		err := observe(r.prom, "leads.backfill_update", func() error {
			_, err := r.pool.Exec(ctx,
				`UPDATE lead_sources SET organization_search = $2, contact_search = $3 WHERE id = $1`,
				p.id, lead.SearchKey(p.org), lead.SearchKey(p.contact))
			return err
		})
		if err != nil {
			return 0, err
		}
	}
	return len(todo), nil
}

func (r *LeadsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
