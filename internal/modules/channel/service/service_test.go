package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/repository"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	sharedErrors "github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) (*Service, repository.Repository) {
	t.Helper()
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	svc := New(&config.Config{UpdateInterval: 3600}, repo)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc, repo
}

func register(t *testing.T, svc *Service, ch domain.Channel) {
	t.Helper()
	require.NoError(t, svc.Register(context.Background(), &ch))
}

func TestListChannelsOrderAndGuildScope(t *testing.T) {
	svc, _ := newDirectory(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	register(t, svc, domain.Channel{ID: "-3", GuildID: "g1", Title: "third", AddedAt: base.Add(2 * time.Hour)})
	register(t, svc, domain.Channel{ID: "-1", GuildID: "g1", Title: "first", AddedAt: base})
	register(t, svc, domain.Channel{ID: "-2", GuildID: "g1", Title: "second", AddedAt: base})
	register(t, svc, domain.Channel{ID: "-9", GuildID: "g2", Title: "other", AddedAt: base})

	channels, err := svc.ListChannels(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"-1", "-2", "-3"}, lo.Map(channels, func(ch domain.Channel, _ int) string { return ch.ID }))

	empty, err := svc.ListChannels(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, []string{"g1", "g2"}, svc.Guilds())
}

func TestRegisterRequiresGuild(t *testing.T) {
	svc, _ := newDirectory(t)
	err := svc.Register(context.Background(), &domain.Channel{ID: "-1"})
	assert.True(t, errors.Is(err, sharedErrors.ErrGuildNotFound))
}

func TestFindChannels(t *testing.T) {
	svc, _ := newDirectory(t)
	register(t, svc, domain.Channel{ID: "-100", GuildID: "g", Title: "General", Username: "wolves_general"})
	register(t, svc, domain.Channel{ID: "-200", GuildID: "g", Title: "Off Topic"})
	register(t, svc, domain.Channel{ID: "-300", GuildID: "g", Title: "off topic"})
	register(t, svc, domain.Channel{ID: "-400", GuildID: "other", Title: "General"})

	ctx := context.Background()
	ids := func(channels []domain.Channel) []string {
		return lo.Map(channels, func(ch domain.Channel, _ int) string { return ch.ID })
	}

	got, err := svc.FindChannels(ctx, "g", "-100")
	require.NoError(t, err)
	assert.Equal(t, []string{"-100"}, ids(got))

	got, err = svc.FindChannels(ctx, "g", "@Wolves_General")
	require.NoError(t, err)
	assert.Equal(t, []string{"-100"}, ids(got))

	got, err = svc.FindChannels(ctx, "g", "  #general ")
	require.NoError(t, err)
	assert.Equal(t, []string{"-100"}, ids(got))

	got, err = svc.FindChannels(ctx, "g", "off topic")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.FindChannels(ctx, "g", "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemoveAndLookups(t *testing.T) {
	svc, repo := newDirectory(t)
	register(t, svc, domain.Channel{ID: "-100", GuildID: "g", Title: "General"})

	guild, ok := svc.GuildOf("-100")
	assert.True(t, ok)
	assert.Equal(t, "g", guild)
	assert.True(t, svc.IsMonitored("-100"))

	removed, err := svc.Remove(context.Background(), "-100")
	require.NoError(t, err)
	assert.Equal(t, "General", removed.Title)
	assert.False(t, svc.IsMonitored("-100"))

	_, err = repo.GetChannel("-100")
	assert.True(t, errors.Is(err, sharedErrors.ErrChannelNotFound))

	_, err = svc.Remove(context.Background(), "-100")
	assert.True(t, errors.Is(err, sharedErrors.ErrChannelNotFound))
}

func TestStartLoadsOnlyActiveChannels(t *testing.T) {
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, repo.SaveChannel(&domain.Channel{ID: "-1", GuildID: "g", IsActive: true}))
	require.NoError(t, repo.SaveChannel(&domain.Channel{ID: "-2", GuildID: "g", IsActive: false}))

	svc := New(&config.Config{UpdateInterval: 3600}, repo)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	assert.True(t, svc.IsMonitored("-1"))
	assert.False(t, svc.IsMonitored("-2"))
}

func TestStopFlushesLastSeen(t *testing.T) {
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	svc := New(&config.Config{UpdateInterval: 3600}, repo)
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Register(context.Background(), &domain.Channel{ID: "-1", GuildID: "g"}))

	seen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.MarkSeen("-1", seen)
	svc.MarkSeen("-1", seen.Add(-time.Hour))
	svc.MarkSeen("-unknown", seen)
	svc.Stop()

	stored, err := repo.GetChannel("-1")
	require.NoError(t, err)
	assert.True(t, stored.LastUpdate.Equal(seen))
}

func TestListChannelsHonoursCancellation(t *testing.T) {
	svc, _ := newDirectory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ListChannels(ctx, "g")
	assert.ErrorIs(t, err, context.Canceled)
}
