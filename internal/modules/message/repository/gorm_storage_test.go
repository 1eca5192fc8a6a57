package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newArchive(t *testing.T, pageSize int) *GormStorage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	store, err := NewGormStorage(db, rate.NewLimiter(rate.Inf, 1), pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func collect(t *testing.T, store *GormStorage, ctx context.Context, channelID string, after time.Time) []int64 {
	t.Helper()
	var ids []int64
	for msg, err := range store.Stream(ctx, channelID, after) {
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	return ids
}

func TestSaveMessageIsIdempotent(t *testing.T) {
	store := newArchive(t, 10)
	ctx := context.Background()
	msg := &domain.Message{ID: 1, ChannelID: "-100", AuthorID: 7, Text: "hello", Date: time.Now()}

	require.NoError(t, store.SaveMessage(ctx, msg))
	require.NoError(t, store.SaveMessage(ctx, msg))

	n, err := store.CountMessages(ctx, "-100")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStreamIsStrictlyAfterBoundary(t *testing.T) {
	store := newArchive(t, 10)
	ctx := context.Background()
	boundary := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 1, ChannelID: "-1", Date: boundary.Add(-time.Second)}))
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 2, ChannelID: "-1", Date: boundary}))
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 3, ChannelID: "-1", Date: boundary.Add(time.Nanosecond)}))
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 4, ChannelID: "-2", Date: boundary.Add(time.Hour)}))

	assert.Equal(t, []int64{3}, collect(t, store, ctx, "-1", boundary))
}

func TestStreamPagesAcrossEqualTimestamps(t *testing.T) {
	store := newArchive(t, 2)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// several messages share a timestamp so page boundaries fall inside a tie
	for i := int64(1); i <= 7; i++ {
		at := start.Add(time.Duration((i+1)/3) * time.Minute)
		require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: i, ChannelID: "-1", AuthorID: i, Date: at}))
	}

	ids := collect(t, store, ctx, "-1", start.Add(-time.Hour))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ids)
	assert.Len(t, lo.Uniq(ids), 7)
}

func TestStreamStopsEarlyAndRestarts(t *testing.T) {
	store := newArchive(t, 2)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: i, ChannelID: "-1", Date: start.Add(time.Duration(i) * time.Second)}))
	}

	seen := 0
	for _, err := range store.Stream(ctx, "-1", start) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
	assert.Len(t, collect(t, store, ctx, "-1", start), 5)
}

func TestStreamReportsCancellation(t *testing.T) {
	store := newArchive(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 1, ChannelID: "-1", Date: time.Now()}))
	cancel()

	var got error
	for _, err := range store.Stream(ctx, "-1", time.Time{}) {
		got = err
	}
	assert.ErrorIs(t, got, context.Canceled)
}

func TestPurge(t *testing.T) {
	store := newArchive(t, 10)
	ctx := context.Background()
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 1, ChannelID: "-1", Date: time.Now()}))
	require.NoError(t, store.SaveMessage(ctx, &domain.Message{ID: 1, ChannelID: "-2", Date: time.Now()}))

	require.NoError(t, store.Purge(ctx, "-1"))

	n, err := store.CountMessages(ctx, "-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.CountMessages(ctx, "-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenSQLite(t *testing.T) {
	repo, err := Open(&config.Config{
		ArchiveDriver:         config.ArchiveDriverSQLite,
		ArchiveDSN:            filepath.Join(t.TempDir(), "nested", "archive.db"),
		HistoryPageSize:       5,
		HistoryReadsPerSecond: 100,
	})
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.SaveMessage(context.Background(), &domain.Message{ID: 1, ChannelID: "-1", Date: time.Now()}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{ArchiveDriver: "mongo"})
	assert.Error(t, err)
}
