package lead

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AllOrganizations is the selector sentinel meaning "no organization filter".
const AllOrganizations = "All"

type Lead struct {
	ID                int64     `json:"id"`
	OrganizationName  string    `json:"organizationName"`
	ContactPersonName string    `json:"contactPersonName"`
	ContactDetails    string    `json:"contactDetails"`
	Address           string    `json:"address"`
	Email             string    `json:"email"`
	SourceType        string    `json:"sourceType"`
	Remarks           string    `json:"remarks,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SourceTypes is the fixed enumeration of acquisition channels, in display order.
var SourceTypes = []string{
	"Personal Contacts",
	"INC Clients in Bcrisp",
	"OCRA in Bcrisp",
	"Bankers",
	"Conference/Webinars",
	"Industry Database",
	"Social Media",
	"Client Reference",
	"Board/wellwishers",
}

func IsKnownSourceType(s string) bool {
	for _, st := range SourceTypes {
		if st == s {
			return true
		}
	}
	return false
}

// NormalizeSourceType trims and title-cases s. Values matching a known source
// type regardless of case come back in their canonical spelling.
func NormalizeSourceType(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	for _, st := range SourceTypes {
		if strings.EqualFold(st, trimmed) {
			return st
		}
	}

	return cases.Title(language.Und).String(trimmed)
}

type CreateLeadRequest struct {
	OrganizationName  string `json:"organizationName" binding:"required,notblank,max=255"`
	ContactPersonName string `json:"contactPersonName" binding:"omitempty,max=255"`
	ContactDetails    string `json:"contactDetails" binding:"omitempty,max=255"`
	Address           string `json:"address" binding:"omitempty,max=1000"`
	Email             string `json:"email" binding:"omitempty,max=255"`
	SourceType        string `json:"sourceType" binding:"required,leadsource"`
	Remarks           string `json:"remarks" binding:"omitempty,max=2000"`
}

func NewFromCreateRequest(req CreateLeadRequest) Lead {
	return Lead{
		OrganizationName:  req.OrganizationName,
		ContactPersonName: req.ContactPersonName,
		ContactDetails:    req.ContactDetails,
		Address:           req.Address,
		Email:             req.Email,
		SourceType:        req.SourceType,
		Remarks:           req.Remarks,
		CreatedAt:         time.Now().UTC(),
	}
}

// ListFilter carries the optional selections of the dashboard.
// Empty Organization or AllOrganizations means unconstrained, as does an empty SourceTypes set.
type ListFilter struct {
	Organization string
	SourceTypes  []string
	Search       string
	Sort         string
	Limit        int
	Offset       int
}

func (f ListFilter) HasOrganization() bool {
	return f.Organization != "" && f.Organization != AllOrganizations
}

// SearchKey is the Unicode case folding used for free-text search. SQL stores
// persist it beside the raw columns, since database LOWER() may fold ASCII only.
func SearchKey(s string) string {
	return cases.Fold().String(s)
}

// Matches reports whether l satisfies the filter predicate (pagination aside).
func (f ListFilter) Matches(l Lead) bool {
	if f.HasOrganization() && l.OrganizationName != f.Organization {
		return false
	}

	if len(f.SourceTypes) > 0 {
		found := false
		for _, st := range f.SourceTypes {
			if st == l.SourceType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if q := SearchKey(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(SearchKey(l.OrganizationName), q) &&
			!strings.Contains(SearchKey(l.ContactPersonName), q) {
			return false
		}
	}

	return true
}
