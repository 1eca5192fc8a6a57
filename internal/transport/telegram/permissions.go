package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	activityDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/samber/oops"
)

const memberCacheSize = 4096

// PermissionChecker answers history read checks with getChatMember. The bot
// must still be in the chat; a requesting user must be a member too.
// Answers are cached for the configured TTL.
type PermissionChecker struct {
	api   API
	botID int64
	cache *expirable.LRU[string, *models.ChatMember]
	mu    sync.RWMutex
}

func NewPermissionChecker(cfg *config.Config) *PermissionChecker {
	ttl := cfg.PermissionCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionChecker{
		cache: expirable.NewLRU[string, *models.ChatMember](memberCacheSize, nil, ttl),
	}
}

// SetBot sets the Bot API client and the bot's own user ID
func (p *PermissionChecker) SetBot(api API, botID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.api = api
	p.botID = botID
}

func (p *PermissionChecker) CanReadHistory(ctx context.Context, identity activityDomain.Identity, channel channelDomain.Channel) (bool, error) {
	chatID, err := channel.ChatID()
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	botID := p.botID
	p.mu.RUnlock()

	member, err := p.Member(ctx, chatID, botID)
	if err != nil {
		return false, err
	}
	if !isPresent(member) {
		return false, nil
	}

	if identity.UserID == 0 || identity.UserID == botID {
		return true, nil
	}
	member, err = p.Member(ctx, chatID, identity.UserID)
	if err != nil {
		return false, err
	}
	return isPresent(member), nil
}

// Member returns a user's membership in a chat
func (p *PermissionChecker) Member(ctx context.Context, chatID, userID int64) (*models.ChatMember, error) {
	key := fmt.Sprintf("%d:%d", chatID, userID)
	if member, ok := p.cache.Get(key); ok {
		return member, nil
	}

	p.mu.RLock()
	api := p.api
	p.mu.RUnlock()
	if api == nil {
		return nil, oops.Errorf("bot not initialized")
	}

	member, err := api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return nil, oops.With("chat_id", chatID, "user_id", userID, "context", "failed to get chat member").Wrap(err)
	}
	p.cache.Add(key, member)
	return member, nil
}

// Forget drops cached memberships of a chat
func (p *PermissionChecker) Forget(chatID int64) {
	prefix := fmt.Sprintf("%d:", chatID)
	for _, key := range p.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			p.cache.Remove(key)
		}
	}
}

func isPresent(member *models.ChatMember) bool {
	if member == nil {
		return false
	}
	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator, models.ChatMemberTypeMember:
		return true
	case models.ChatMemberTypeRestricted:
		return member.Restricted != nil && member.Restricted.IsMember
	default:
		return false
	}
}

// canModerate reports whether a member is the owner or an administrator
// holding the right the check asks for
func canModerate(member *models.ChatMember, right func(*models.ChatMemberAdministrator) bool) bool {
	if member == nil {
		return false
	}
	switch member.Type {
	case models.ChatMemberTypeOwner:
		return true
	case models.ChatMemberTypeAdministrator:
		return member.Administrator != nil && right(member.Administrator)
	default:
		return false
	}
}
