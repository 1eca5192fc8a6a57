package repository

import (
	"context"
	"iter"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
)

// Repository defines the interface for the message archive
type Repository interface {
	// SaveMessage stores a message; saving the same chat message twice is a no-op
	SaveMessage(ctx context.Context, message *domain.Message) error
	// Stream yields a channel's messages sent strictly after the given time,
	// oldest first. Pages are fetched lazily as the sequence is consumed.
	Stream(ctx context.Context, channelID string, after time.Time) iter.Seq2[domain.Message, error]
	CountMessages(ctx context.Context, channelID string) (int64, error)
	Purge(ctx context.Context, channelID string) error
	Close() error
}
