package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/geocoder89/leadhub/internal/domain/lead"
)

type LeadsRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  []lead.Lead
}

func NewLeadsRepo() *LeadsRepo {
	return &LeadsRepo{}
}

func (r *LeadsRepo) Create(_ context.Context, l lead.Lead) (lead.Lead, error) {
	r.mu.Lock()
	r.nextID++
	l.ID = r.nextID
	r.items = append(r.items, l)
	r.mu.Unlock()

	return l, nil
}

func (r *LeadsRepo) List(_ context.Context, f lead.ListFilter) ([]lead.Lead, int, error) {
	r.mu.RLock()
	matched := make([]lead.Lead, 0)
	for _, l := range r.items {
		if f.Matches(l) {
			matched = append(matched, l)
		}
	}
	r.mu.RUnlock()

	sortLeads(matched, f.Sort)

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}

	return matched[start:end], total, nil
}

func sortLeads(items []lead.Lead, key string) {
	less := func(a, b lead.Lead) (bool, bool) {
		switch key {
		case "contact":
			return a.ContactPersonName < b.ContactPersonName, a.ContactPersonName == b.ContactPersonName
		case "source":
			return a.SourceType < b.SourceType, a.SourceType == b.SourceType
		case "newest":
			return a.CreatedAt.After(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		default:
			return a.OrganizationName < b.OrganizationName, a.OrganizationName == b.OrganizationName
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		lt, eq := less(items[i], items[j])
		if eq {
			return items[i].ID < items[j].ID
		}
		return lt
	})
}

func (r *LeadsRepo) Organizations(_ context.Context, term string) ([]string, error) {
	term = lead.SearchKey(term)
	seen := make(map[string]struct{})
	out := make([]string, 0)

	r.mu.RLock()
	for _, l := range r.items {
		if _, ok := seen[l.OrganizationName]; ok {
			continue
		}
		if term != "" && !strings.Contains(lead.SearchKey(l.OrganizationName), term) {
			continue
		}
		seen[l.OrganizationName] = struct{}{}
		out = append(out, l.OrganizationName)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out, nil
}

func (r *LeadsRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *LeadsRepo) Ping(context.Context) error { return nil }
