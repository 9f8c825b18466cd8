package db

import (
	"context"
	"fmt"

	"github.com/geocoder89/leadhub/internal/repo/sqlite"
	gsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens (or creates) the embedded database file and auto-migrates
// the users and lead_sources tables.
func OpenSQLite(path string) (*gorm.DB, error) {
	// one connection: the engine locks the whole file on write anyway
	gdb, err := gorm.Open(gsqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&sqlite.UserRow{}, &sqlite.LeadRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if _, err := sqlite.NewLeadsRepo(gdb, nil).BackfillSearchKeys(context.Background()); err != nil {
		return nil, fmt.Errorf("backfill search keys: %w", err)
	}

	return gdb, nil
}
