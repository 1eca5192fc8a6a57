package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	activityDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChecker(members map[int64]*models.ChatMember) (*PermissionChecker, *fakeAPI) {
	api := &fakeAPI{members: members}
	checker := NewPermissionChecker(&config.Config{PermissionCacheTTL: time.Minute})
	checker.SetBot(api, botID)
	return checker, api
}

func TestCanReadHistory(t *testing.T) {
	checker, api := newChecker(map[int64]*models.ChatMember{
		botID: {Type: models.ChatMemberTypeAdministrator, Administrator: &models.ChatMemberAdministrator{}},
		1:     {Type: models.ChatMemberTypeMember, Member: &models.ChatMemberMember{}},
		2:     {Type: models.ChatMemberTypeRestricted, Restricted: &models.ChatMemberRestricted{IsMember: false}},
	})
	ctx := context.Background()
	ch := channelDomain.Channel{ID: "-100"}

	ok, err := checker.CanReadHistory(ctx, activityDomain.Identity{}, ch)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.CanReadHistory(ctx, activityDomain.Identity{UserID: 1}, ch)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.CanReadHistory(ctx, activityDomain.Identity{UserID: 2}, ch)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = checker.CanReadHistory(ctx, activityDomain.Identity{UserID: 3}, ch)
	require.NoError(t, err)
	assert.False(t, ok)

	// bot + users 1, 2 and 3, each looked up once
	assert.Equal(t, 4, api.memberCalls)
	_, _ = checker.CanReadHistory(ctx, activityDomain.Identity{UserID: 1}, ch)
	assert.Equal(t, 4, api.memberCalls)

	checker.Forget(-100)
	_, _ = checker.CanReadHistory(ctx, activityDomain.Identity{UserID: 1}, ch)
	assert.Equal(t, 6, api.memberCalls)
}

func TestCanReadHistoryWhenBotRemoved(t *testing.T) {
	checker, _ := newChecker(map[int64]*models.ChatMember{
		botID: {Type: models.ChatMemberTypeBanned, Banned: &models.ChatMemberBanned{}},
		1:     {Type: models.ChatMemberTypeMember, Member: &models.ChatMemberMember{}},
	})

	ok, err := checker.CanReadHistory(context.Background(), activityDomain.Identity{UserID: 1}, channelDomain.Channel{ID: "-100"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanReadHistoryErrors(t *testing.T) {
	checker := NewPermissionChecker(&config.Config{})
	_, err := checker.CanReadHistory(context.Background(), activityDomain.Identity{}, channelDomain.Channel{ID: "-100"})
	assert.Error(t, err)

	checker, _ = newChecker(nil)
	_, err = checker.CanReadHistory(context.Background(), activityDomain.Identity{}, channelDomain.Channel{ID: "not-a-chat"})
	assert.Error(t, err)
}

func TestCanModerate(t *testing.T) {
	deleteRight := func(a *models.ChatMemberAdministrator) bool { return a.CanDeleteMessages }

	assert.True(t, canModerate(&models.ChatMember{Type: models.ChatMemberTypeOwner}, deleteRight))
	assert.True(t, canModerate(&models.ChatMember{
		Type:          models.ChatMemberTypeAdministrator,
		Administrator: &models.ChatMemberAdministrator{CanDeleteMessages: true},
	}, deleteRight))
	assert.False(t, canModerate(&models.ChatMember{
		Type:          models.ChatMemberTypeAdministrator,
		Administrator: &models.ChatMemberAdministrator{},
	}, deleteRight))
	assert.False(t, canModerate(&models.ChatMember{Type: models.ChatMemberTypeMember}, deleteRight))
	assert.False(t, canModerate(nil, deleteRight))
}
