package lead

import "sort"

// Bucket is one slice of a chart series.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Summary struct {
	TotalLeads          int      `json:"totalLeads"`
	UniqueOrganizations int      `json:"uniqueOrganizations"`
	TopSource           string   `json:"topSource"`
	SourceDistribution  []Bucket `json:"sourceDistribution"`
	LeadsByOrganization []Bucket `json:"leadsByOrganization"`
}

// Summarize computes the dashboard statistics over the rows actually fetched,
// not over the whole store. Equal counts keep first-occurrence order.
func Summarize(rows []Lead) Summary {
	sources := countBy(rows, func(l Lead) string { return l.SourceType })
	orgs := countBy(rows, func(l Lead) string { return l.OrganizationName })

	s := Summary{
		TotalLeads:          len(rows),
		UniqueOrganizations: len(orgs),
		SourceDistribution:  sources,
		LeadsByOrganization: orgs,
	}

	if len(sources) > 0 {
		s.TopSource = sources[0].Label
	}

	return s
}

// countBy groups rows by key and returns buckets sorted by count descending.
func countBy(rows []Lead, key func(Lead) string) []Bucket {
	index := make(map[string]int)
	buckets := make([]Bucket, 0)

	for _, r := range rows {
		k := key(r)
		if i, ok := index[k]; ok {
			buckets[i].Count++
			continue
		}
		index[k] = len(buckets)
		buckets = append(buckets, Bucket{Label: k, Count: 1})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})

	return buckets
}
