package repository

import (
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
)

// Repository defines the interface for the channel directory persistence
type Repository interface {
	SaveChannel(channel *domain.Channel) error
	GetChannel(channelID string) (*domain.Channel, error)
	GetAllChannels() ([]*domain.Channel, error)
	DeleteChannel(channelID string) error
}
