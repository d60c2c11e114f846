package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stepflow/internal/models"
)

// newGormTestStore runs the gorm store on SQLite through the modernc driver
// already linked for SQLiteStore.
func newGormTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "gorm.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := NewGormStore(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGormSaveScenarioLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	s := newGormTestStore(t)
	sc := loginScenario(1)
	require.NoError(t, s.SaveScenario(ctx, sc))

	sc.Steps = sc.Steps[1:2]
	require.NoError(t, s.SaveScenario(ctx, sc))

	var steps int64
	require.NoError(t, s.DB.Unscoped().Model(&models.ScenarioStep{}).Where("scenario_id = ?", sc.ID).Count(&steps).Error)
	assert.Equal(t, int64(1), steps, "replaced steps are removed, not soft-deleted")

	var templates int64
	require.NoError(t, s.DB.Model(&models.StepTemplate{}).Count(&templates).Error)
	assert.Equal(t, int64(3), templates, "steps keep their templates across saves")
}

func TestGormSaveScenarioUsesDefaultProfile(t *testing.T) {
	ctx := context.Background()
	s := newGormTestStore(t)
	sc := loginScenario(1)
	require.NoError(t, s.SaveScenario(ctx, sc))

	var p models.Profile
	require.NoError(t, s.DB.Where("name = ?", defaultProfile).First(&p).Error)
	assert.Equal(t, p.ID, sc.ProfileID)
}

func TestGormSeedIsIdempotent(t *testing.T) {
	s := newGormTestStore(t)
	require.NoError(t, s.AutoMigrate())

	var n int64
	require.NoError(t, s.DB.Model(&models.Profile{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
