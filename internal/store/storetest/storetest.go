// Package storetest opens throwaway SQLite-backed user stores for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"automateeasy/internal/model"
	"automateeasy/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// NewUserStore returns a store over a private in-memory database that is
// closed when the test ends.
func NewUserStore(t testing.TB) *store.UserStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := store.Migrate(context.Background(), db, "sqlite", nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewUserStore(db)
}

// CountUsers returns the number of rows in the users table.
func CountUsers(t testing.TB, s *store.UserStore) int64 {
	t.Helper()
	var n int64
	if err := s.DB().Model(&model.User{}).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}
