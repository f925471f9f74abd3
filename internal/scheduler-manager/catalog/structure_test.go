package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"studio-scheduler-service/internal/scheduler-manager/db"
)

func TestNewStructure_Position(t *testing.T) {
	s := NewStructure([]Section{
		{ID: "post", Order: 2, Categories: []Category{{ID: "edit", Order: 1}, {ID: "color", Order: 0}}},
		{ID: "shoot", Order: 1, Categories: []Category{{ID: "photo", Order: 0}}},
	})

	sec, cat, ok := s.Position("edit")
	require.True(t, ok)
	assert.Equal(t, 1, sec)
	assert.Equal(t, 1, cat)

	sectionID, ok := s.SectionOf("photo")
	require.True(t, ok)
	assert.Equal(t, "shoot", sectionID)

	_, _, ok = s.Position("unknown")
	assert.False(t, ok)
	assert.False(t, s.Empty())
	assert.True(t, (*Structure)(nil).Empty())
}

func TestDBProvider(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&db.CatalogSection{}, &db.CatalogCategory{}))

	sec := db.CatalogSection{StudioID: "s1", Name: "Coverage", SortOrder: 0}
	require.NoError(t, gormDB.Create(&sec).Error)
	require.NoError(t, gormDB.Create(&db.CatalogCategory{StudioID: "s1", SectionID: sec.ID, Name: "Video", SortOrder: 1}).Error)
	require.NoError(t, gormDB.Create(&db.CatalogCategory{StudioID: "s1", SectionID: sec.ID, Name: "Photo", SortOrder: 0}).Error)
	require.NoError(t, gormDB.Create(&db.CatalogCategory{StudioID: "other", SectionID: sec.ID, Name: "Foreign"}).Error)

	s, err := NewDBProvider(gormDB).GetCatalogStructure(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, s.Sections, 1)
	require.Len(t, s.Sections[0].Categories, 2)
	assert.Equal(t, "Photo", s.Sections[0].Categories[0].Name)
}
