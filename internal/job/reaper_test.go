package job

import (
	"testing"
	"time"

	"inmopresence/internal/models"
	"inmopresence/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestReaperPurgesGhostRows(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserPresence{}))

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.UserPresence{
		UserID: uuid.New(), Role: "admin", LastSeen: now.Add(-48 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.UserPresence{
		UserID: uuid.New(), Role: "admin", LastSeen: now,
	}).Error)

	reaper := NewReaper(repository.NewPresenceRepository(db), 24*time.Hour, zap.NewNop())
	reaper.Run()

	var count int64
	require.NoError(t, db.Model(&models.UserPresence{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only the ghost row goes")
}
