package lead

import "testing"

func TestNormalizeSourceType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  bankers ", want: "Bankers"},
		{in: "SOCIAL MEDIA", want: "Social Media"},
		{in: "inc clients in bcrisp", want: "INC Clients in Bcrisp"},
		{in: "board/wellwishers", want: "Board/wellwishers"},
		{in: "carrier pigeon", want: "Carrier Pigeon"},
		{in: "   ", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizeSourceType(tt.in); got != tt.want {
			t.Fatalf("NormalizeSourceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsKnownSourceType(t *testing.T) {
	if !IsKnownSourceType("Client Reference") {
		t.Fatalf("expected Client Reference to be known")
	}
	if IsKnownSourceType("client reference") {
		t.Fatalf("lookup must be exact")
	}
}

func TestListFilter_Matches(t *testing.T) {
	l := Lead{OrganizationName: "Acme Corp", ContactPersonName: "Jane Roe", SourceType: "Bankers"}

	tests := []struct {
		name   string
		filter ListFilter
		want   bool
	}{
		{name: "empty", filter: ListFilter{}, want: true},
		{name: "all_sentinel", filter: ListFilter{Organization: AllOrganizations}, want: true},
		{name: "org_match", filter: ListFilter{Organization: "Acme Corp"}, want: true},
		{name: "org_mismatch", filter: ListFilter{Organization: "acme corp"}, want: false},
		{name: "source_in_set", filter: ListFilter{SourceTypes: []string{"Social Media", "Bankers"}}, want: true},
		{name: "source_not_in_set", filter: ListFilter{SourceTypes: []string{"Social Media"}}, want: false},
		{name: "search_contact_case_insensitive", filter: ListFilter{Search: "JANE"}, want: true},
		{name: "search_org", filter: ListFilter{Search: "cme"}, want: true},
		{name: "search_miss", filter: ListFilter{Search: "globex"}, want: false},
		{name: "conjunction", filter: ListFilter{Organization: "Acme Corp", SourceTypes: []string{"Social Media"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(l); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "ACME", want: "acme"},
		{in: "ÉCOLE Müller", want: "école müller"},
		{in: "ØRSTED", want: "ørsted"},
		{in: "50%_Off", want: "50%_off"},
	}

	for _, tt := range tests {
		if got := SearchKey(tt.in); got != tt.want {
			t.Fatalf("SearchKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	l := Lead{OrganizationName: "ÉCOLE Müller", ContactPersonName: "Ørsted"}
	if !(ListFilter{Search: "école"}).Matches(l) || !(ListFilter{Search: "ørsted"}).Matches(l) {
		t.Fatalf("non-ASCII search should match case-insensitively")
	}
}
