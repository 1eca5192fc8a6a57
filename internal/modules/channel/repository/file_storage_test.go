package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	sharedErrors "github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageRoundTrip(t *testing.T) {
	repo, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	ch := &domain.Channel{
		ID:       "-1001",
		GuildID:  "wolves",
		Username: "wolves_general",
		Title:    "General",
		Public:   true,
		AddedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		IsActive: true,
	}
	require.NoError(t, repo.SaveChannel(ch))

	got, err := repo.GetChannel("-1001")
	require.NoError(t, err)
	assert.Equal(t, ch, got)

	ch.Title = "General Chat"
	require.NoError(t, repo.SaveChannel(ch))
	got, err = repo.GetChannel("-1001")
	require.NoError(t, err)
	assert.Equal(t, "General Chat", got.Title)
}

func TestFileStorageListAndDelete(t *testing.T) {
	repo, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"-300", "-100", "-200"} {
		require.NoError(t, repo.SaveChannel(&domain.Channel{ID: id, GuildID: "g"}))
	}

	all, err := repo.GetAllChannels()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "-100", all[0].ID)

	require.NoError(t, repo.DeleteChannel("-100"))
	all, err = repo.GetAllChannels()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = repo.DeleteChannel("-100")
	assert.True(t, errors.Is(err, sharedErrors.ErrChannelNotFound))

	_, err = repo.GetChannel("missing")
	assert.True(t, errors.Is(err, sharedErrors.ErrChannelNotFound))
}
