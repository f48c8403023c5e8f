// Package testutil wires real in-memory backends for package tests.
package testutil

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"todola/backend/internal/auth"
	"todola/backend/internal/logger"
	"todola/backend/internal/store"
)

const Secret = "test-secret"

// OpenDB returns a private SQLite in-memory database. The pool is capped
// at one connection because every connection to :memory: is a separate
// database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func NewStore(t testing.TB, db *gorm.DB) *store.Guarded {
	t.Helper()

	s, err := store.NewGormStore(db, logger.Discard())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return store.NewGuarded(s, nil)
}

func NewAuthService(t testing.TB, db *gorm.DB) *auth.Service {
	t.Helper()

	svc, err := auth.NewService(db, auth.Config{
		Secret:     Secret,
		Issuer:     "todola",
		BCryptCost: bcrypt.MinCost,
	}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}
	return svc
}
