package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/geocoder89/leadhub/internal/db"
	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/geocoder89/leadhub/internal/domain/user"
	"github.com/geocoder89/leadhub/internal/repo/sqlite"
)

func openRepos(t *testing.T) (*sqlite.LeadsRepo, *sqlite.UsersRepo) {
	t.Helper()

	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return sqlite.NewLeadsRepo(gdb, nil), sqlite.NewUsersRepo(gdb, nil)
}

func TestLeadsRepo_FilterAndPaginate(t *testing.T) {
	leads, _ := openRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, l := range []lead.Lead{
		{OrganizationName: "Globex", ContactPersonName: "Hank", SourceType: "Bankers", CreatedAt: now},
		{OrganizationName: "Acme", ContactPersonName: "Jane Roe", SourceType: "Bankers", CreatedAt: now},
		{OrganizationName: "Acme", ContactPersonName: "John Doe", SourceType: "Social Media", CreatedAt: now},
		{OrganizationName: "100%_Real", ContactPersonName: "Wildcard", SourceType: "Industry Database", CreatedAt: now},
	} {
		if _, err := leads.Create(ctx, l); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rows, total, err := leads.List(ctx, lead.ListFilter{Organization: "Acme", SourceTypes: []string{"Bankers"}, Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ContactPersonName != "Jane Roe" {
		t.Fatalf("unexpected result total=%d rows=%#v", total, rows)
	}

	rows, total, err = leads.List(ctx, lead.ListFilter{Organization: lead.AllOrganizations, Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 4 || len(rows) != 2 {
		t.Fatalf("expected total 4 and page of 2, got %d/%d", total, len(rows))
	}
	if rows[0].OrganizationName != "100%_Real" || rows[1].OrganizationName != "Acme" {
		t.Fatalf("expected organization ordering, got %q, %q", rows[0].OrganizationName, rows[1].OrganizationName)
	}

	// wildcard characters in the search text are literal
	rows, total, err = leads.List(ctx, lead.ListFilter{Search: "%_r", Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 || rows[0].OrganizationName != "100%_Real" {
		t.Fatalf("unexpected search result total=%d rows=%#v", total, rows)
	}

	orgs, err := leads.Organizations(ctx, "ac")
	if err != nil {
		t.Fatalf("Organizations error: %v", err)
	}
	if len(orgs) != 1 || orgs[0] != "Acme" {
		t.Fatalf("unexpected organizations %#v", orgs)
	}
}

func TestLeadsRepo_SearchFoldsNonASCII(t *testing.T) {
	leads, _ := openRepos(t)
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

func TestOpenSQLite_BackfillsSearchKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.db")
	ctx := context.Background()

	gdb, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a row as written before the search columns were populated
	if err := gdb.Create(&sqlite.LeadRow{OrganizationName: "ÉCOLE", ContactPersonName: "Zoë", CreatedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}

	gdb, err = db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	_, total, err := sqlite.NewLeadsRepo(gdb, nil).List(ctx, lead.ListFilter{Search: "zoë", Limit: 10})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected the old row to be searchable after reopen, got total=%d", total)
	}
}

func TestUsersRepo_UniqueAndProtected(t *testing.T) {
	_, users := openRepos(t)
	ctx := context.Background()

	if _, err := users.Create(ctx, user.User{Username: "admin", PasswordHash: "x", Role: user.RoleAdmin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := users.Create(ctx, user.User{Username: "admin", PasswordHash: "y", Role: user.RoleUser}); !errors.Is(err, user.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := users.Create(ctx, user.User{Username: "sam", PasswordHash: "z", Role: user.RoleUser}); err != nil {
		t.Fatalf("create sam: %v", err)
	}

	if err := users.Delete(ctx, "admin"); !errors.Is(err, user.ErrProtectedUser) {
		t.Fatalf("expected ErrProtectedUser, got %v", err)
	}
	if err := users.Delete(ctx, "sam"); err != nil {
		t.Fatalf("delete sam: %v", err)
	}
	if _, err := users.GetByUsername(ctx, "sam"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected sam to be gone, got %v", err)
	}

	if err := users.UpdatePassword(ctx, "admin", "new", false); err != nil {
		t.Fatalf("update password: %v", err)
	}
	u, _ := users.GetByUsername(ctx, "admin")
	if u.PasswordHash != "new" || u.MustChangePassword {
		t.Fatalf("password not updated: %+v", u)
	}
}
