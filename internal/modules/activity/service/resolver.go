package service

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Directory enumerates and looks up the channels of a guild
type Directory interface {
	ListChannels(ctx context.Context, guildID string) ([]channelDomain.Channel, error)
	FindChannels(ctx context.Context, guildID, token string) ([]channelDomain.Channel, error)
}

// Resolver turns a context token into the set of channels to search
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve maps "all", "public" or a single channel reference to a channel
// context. Keywords are case-insensitive.
func (r *Resolver) Resolve(ctx context.Context, token, guildID string) (domain.ChannelContext, error) {
	token = strings.TrimSpace(token)
	keyword := strings.ToLower(token)

	switch keyword {
	case domain.ContextAll, domain.ContextPublic:
		channels, err := r.directory.ListChannels(ctx, guildID)
		if err != nil {
			return domain.ChannelContext{}, r.listFailed(ctx, guildID, err)
		}
		if keyword == domain.ContextPublic {
			channels = lo.Filter(channels, func(ch channelDomain.Channel, _ int) bool { return ch.Public })
		}
		return domain.ChannelContext{Name: keyword, Channels: dedupe(channels)}, nil
	}

	if token == "" {
		return domain.ChannelContext{}, oops.Code("invalid_context").With("guild_id", guildID).Wrap(errors.ErrInvalidContext)
	}

	matches, err := r.directory.FindChannels(ctx, guildID, token)
	if err != nil {
		return domain.ChannelContext{}, r.listFailed(ctx, guildID, err)
	}
	matches = dedupe(matches)
	if len(matches) != 1 {
		return domain.ChannelContext{}, oops.
			Code("invalid_context").
			With("guild_id", guildID, "token", token, "matches", len(matches)).
			Wrap(errors.ErrInvalidContext)
	}

	return domain.ChannelContext{Name: matches[0].Name(), Channels: matches}, nil
}

func (r *Resolver) listFailed(ctx context.Context, guildID string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return oops.Code("invalid_context").With("guild_id", guildID).Wrap(stdErrors.Join(errors.ErrInvalidContext, err))
}

func dedupe(channels []channelDomain.Channel) []channelDomain.Channel {
	return lo.UniqBy(channels, func(ch channelDomain.Channel) string { return ch.ID })
}
