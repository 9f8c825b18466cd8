package sqlite

import (
	"context"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/geocoder89/leadhub/internal/repo/filter"
	"gorm.io/gorm"
)

type LeadsRepo struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewLeadsRepo(db *gorm.DB, prom *observability.Prom) *LeadsRepo {
	return &LeadsRepo{db: db, prom: prom}
}

func (r *LeadsRepo) Create(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	row := LeadRow{
		OrganizationName:  l.OrganizationName,
		ContactPersonName: l.ContactPersonName,
		ContactDetails:    l.ContactDetails,
		Address:           l.Address,
		Email:             l.Email,
		SourceType:        l.SourceType,
		Remarks:           l.Remarks,
		CreatedAt:         l.CreatedAt,

		OrganizationSearch: lead.SearchKey(l.OrganizationName),
		ContactSearch:      lead.SearchKey(l.ContactPersonName),
	}

	err := observe(r.prom, "leads.create", func() error {
		return r.db.WithContext(ctx).Create(&row).Error
	})
	if err != nil {
		return lead.Lead{}, err
	}

	l.ID = row.ID
	return l, nil
}

func (r *LeadsRepo) scoped(ctx context.Context, f lead.ListFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&LeadRow{})

	clause := filter.Build(f, filter.SQLite)
	if clause.Where != "" {
		q = q.Where(clause.Where, clause.Args...)
	}
	return q
}

func (r *LeadsRepo) List(ctx context.Context, f lead.ListFilter) ([]lead.Lead, int, error) {
	var total int64
	err := observe(r.prom, "leads.count", func() error {
		return r.scoped(ctx, f).Count(&total).Error
	})
	if err != nil {
		return nil, 0, err
	}

	var rows []LeadRow
	err = observe(r.prom, "leads.list", func() error {
		return r.scoped(ctx, f).
			Order(filter.OrderBy(f.Sort)).
			Limit(f.Limit).
			Offset(f.Offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]lead.Lead, 0, len(rows))
	for _, row := range rows {
		out = append(out, lead.Lead{
			ID:                row.ID,
			OrganizationName:  row.OrganizationName,
			ContactPersonName: row.ContactPersonName,
			ContactDetails:    row.ContactDetails,
			Address:           row.Address,
			Email:             row.Email,
			SourceType:        row.SourceType,
			Remarks:           row.Remarks,
			CreatedAt:         row.CreatedAt,
		})
	}

	return out, int(total), nil
}

func (r *LeadsRepo) Organizations(ctx context.Context, term string) ([]string, error) {
	out := make([]string, 0)

	err := observe(r.prom, "leads.organizations", func() error {
		q := r.db.WithContext(ctx).Model(&LeadRow{}).Distinct("organization_name")
		if term != "" {
			q = q.Where(`organization_search LIKE ? ESCAPE '\'`, filter.ContainsPattern(term))
		}
		return q.Order("organization_name ASC").Pluck("organization_name", &out).Error
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// BackfillSearchKeys fills the folded search columns of rows written before
// they existed. It returns the number of rows updated.
func (r *LeadsRepo) BackfillSearchKeys(ctx context.Context) (int, error) {
	var rows []LeadRow
	err := r.db.WithContext(ctx).
		Select("id", "organization_name", "contact_person_name").
		Where("organization_search = '' AND organization_name <> ''").
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		err := r.db.WithContext(ctx).Model(&LeadRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"organization_search": lead.SearchKey(row.OrganizationName),
			"contact_search":      lead.SearchKey(row.ContactPersonName),
		}).Error
		if err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (r *LeadsRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
