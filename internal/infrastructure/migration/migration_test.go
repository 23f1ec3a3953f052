package migration

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orris-inc/storefront/internal/infrastructure/database"
	"github.com/orris-inc/storefront/internal/infrastructure/migration/scripts"
	"github.com/orris-inc/storefront/internal/shared/constants"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

func TestNewManager_PicksStrategyByDriver(t *testing.T) {
	sqliteMgr := NewManager(database.DriverSQLite, logger.NewNop())
	assert.Equal(t, "gorm_auto_migrate", sqliteMgr.GetStrategy().GetName())
	assert.Nil(t, sqliteMgr.Goose())

	mysqlMgr := NewManager(database.DriverMySQL, logger.NewNop())
	assert.Equal(t, "goose", mysqlMgr.GetStrategy().GetName())
	assert.NotNil(t, mysqlMgr.Goose())
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	mgr := NewManager(database.DriverSQLite, logger.NewNop())
	require.NoError(t, mgr.Migrate(db))

	for _, table := range []string{constants.TableResources, constants.TableFunnels, constants.TableFunnelResources} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedScripts(t *testing.T) {
	names, err := fs.Glob(scripts.FS, "*.sql")
	require.NoError(t, err)
	require.Len(t, names, 2)

	for _, name := range names {
		body, err := fs.ReadFile(scripts.FS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}
