package service

import (
	"context"
	"iter"
	"time"

	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/message/repository"
)

// Service archives observed messages and serves them back as channel history
type Service struct {
	repo repository.Repository
}

// New creates a new message service
func New(repo repository.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Archive stores a message observed by the bot
func (s *Service) Archive(ctx context.Context, message *domain.Message) error {
	return s.repo.SaveMessage(ctx, message)
}

// Stream returns the channel's archived history strictly after the given time
func (s *Service) Stream(ctx context.Context, channel channelDomain.Channel, after time.Time) iter.Seq2[domain.Message, error] {
	return s.repo.Stream(ctx, channel.ID, after)
}

// Count returns how many messages of a channel are archived
func (s *Service) Count(ctx context.Context, channelID string) (int64, error) {
	return s.repo.CountMessages(ctx, channelID)
}

// Forget drops a channel's archived history
func (s *Service) Forget(ctx context.Context, channelID string) error {
	return s.repo.Purge(ctx, channelID)
}

// Close releases the archive database
func (s *Service) Close() error {
	return s.repo.Close()
}
