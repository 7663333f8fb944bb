package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"inmopresence/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Profile{}, &models.UserPresence{}))
	return db
}

func TestUpsertIsIdempotentPerUser(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		err := repo.Upsert(ctx, &models.UserPresence{
			UserID:   userID,
			Role:     "admin",
			FullName: "Ana Torres",
			LastSeen: base.Add(time.Duration(i) * 20 * time.Second),
		})
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, repo.db.Model(&models.UserPresence{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	row, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.LastSeen.Equal(base.Add(4*20*time.Second)),
		"row must carry the most recent last_seen")
}

func TestUpsertRefreshesProfileFields(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{
		UserID: userID, Role: "admin", FullName: "Old Name", LastSeen: time.Now(),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{
		UserID: userID, Role: "super_admin", FullName: "New Name", Whatsapp: "+5491100000000", LastSeen: time.Now(),
	}))

	row, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "super_admin", row.Role)
	assert.Equal(t, "New Name", row.FullName)
	assert.Equal(t, "+5491100000000", row.Whatsapp)
}

func TestListActiveSinceStrictBoundary(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	threshold := 45 * time.Second
	cutoff := now.Add(-threshold)

	fresh := uuid.New()
	exact := uuid.New()
	stale := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: fresh, Role: "admin", LastSeen: now.Add(-10 * time.Second)}))
	// aged exactly the threshold: must be offline
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: exact, Role: "admin", LastSeen: cutoff}))
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: stale, Role: "admin", LastSeen: now.Add(-2 * time.Minute)}))

	rows, err := repo.ListActiveSince(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh, rows[0].UserID)
}

func TestListActiveSinceOrdersNewestFirst(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	older := uuid.New()
	newer := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: older, Role: "admin", LastSeen: now.Add(-30 * time.Second)}))
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: newer, Role: "admin", LastSeen: now.Add(-5 * time.Second)}))

	rows, err := repo.ListActiveSince(ctx, now.Add(-45*time.Second))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, newer, rows[0].UserID)
	assert.Equal(t, older, rows[1].UserID)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: userID, Role: "admin", LastSeen: time.Now()}))
	require.NoError(t, repo.Delete(ctx, userID))
	// second delete of an absent row is still success
	require.NoError(t, repo.Delete(ctx, userID))

	row, err := repo.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestDeleteOverridesFreshHeartbeat(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	// heartbeat one second ago, then explicit offline
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: userID, Role: "admin", LastSeen: now.Add(-time.Second)}))
	require.NoError(t, repo.Delete(ctx, userID))

	rows, err := repo.ListActiveSince(ctx, now.Add(-45*time.Second))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteStaleBefore(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	ghost := uuid.New()
	live := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: ghost, Role: "admin", LastSeen: now.Add(-48 * time.Hour)}))
	require.NoError(t, repo.Upsert(ctx, &models.UserPresence{UserID: live, Role: "admin", LastSeen: now}))

	n, err := repo.DeleteStaleBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := repo.GetByUserID(ctx, live)
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestConcurrentUpsertsLeaveOneRow(t *testing.T) {
	repo := NewPresenceRepository(setupTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	// two tabs of the same session beating at once
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Upsert(ctx, &models.UserPresence{
				UserID:   userID,
				Role:     "admin",
				LastSeen: now.Add(time.Duration(i) * time.Second),
			})
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, repo.db.Model(&models.UserPresence{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
