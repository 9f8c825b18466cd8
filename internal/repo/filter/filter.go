// Package filter turns dashboard selections into a parameterized SQL predicate
// shared by the SQL-backed lead stores.
package filter

import (
	"fmt"
	"strings"

	"github.com/geocoder89/leadhub/internal/domain/lead"
)

type Dialect int

const (
	// Postgres uses $1, $2 ... placeholders.
	Postgres Dialect = iota
	// SQLite uses ? placeholders.
	SQLite
)

// Clause is a WHERE predicate (without the keyword) and its bound arguments.
type Clause struct {
	Where string
	Args  []any
}

// SQL returns " WHERE <predicate>" or "" when unconstrained.
func (c Clause) SQL() string {
	if c.Where == "" {
		return ""
	}
	return " WHERE " + c.Where
}

type builder struct {
	dialect Dialect
	conds   []string
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

func Build(f lead.ListFilter, d Dialect) Clause {
	b := &builder{dialect: d}

	if f.HasOrganization() {
		b.conds = append(b.conds, "organization_name = "+b.bind(f.Organization))
	}

	if len(f.SourceTypes) > 0 {
		placeholders := make([]string, 0, len(f.SourceTypes))
		for _, st := range f.SourceTypes {
			placeholders = append(placeholders, b.bind(st))
		}
		b.conds = append(b.conds, "source_type IN ("+strings.Join(placeholders, ",")+")")
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := ContainsPattern(q)
		b.conds = append(b.conds, fmt.Sprintf(
			`(organization_search LIKE %s ESCAPE '\' OR contact_search LIKE %s ESCAPE '\')`,
			b.bind(pattern), b.bind(pattern),
		))
	}

	return Clause{Where: strings.Join(b.conds, " AND "), Args: b.args}
}

// ContainsPattern folds q and wraps it for a substring LIKE against the
// *_search columns.
func ContainsPattern(q string) string {
	return "%" + EscapeLike(lead.SearchKey(q)) + "%"
}

// EscapeLike escapes LIKE wildcards so user text matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var sortColumns = map[string]string{
	"organization": "organization_name ASC",
	"contact":      "contact_person_name ASC",
	"source":       "source_type ASC",
	"newest":       "created_at DESC",
}

// OrderBy maps a sort key to a whitelisted ORDER BY expression. Unknown keys
// fall back to organization name. id is always the tiebreaker for stable paging.
func OrderBy(sort string) string {
	col, ok := sortColumns[sort]
	if !ok {
		col = sortColumns["organization"]
	}
	return col + ", id ASC"
}

func IsSortKey(sort string) bool {
	_, ok := sortColumns[sort]
	return ok
}
