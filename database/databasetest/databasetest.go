// Package databasetest opens throwaway SQLite databases migrated with the
// production schema. SQLite has no row locks; a single connection serializes
// transactions instead, which gives tests the same one-at-a-time view of a
// locked row that Postgres gives the server.
package databasetest

import (
	"fmt"
	"testing"

	"github.com/anjiri1684/studio_booking/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Options())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}
