package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage keeps one JSON document per registered chat
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based channel repository
func NewFileStorage(basePath string) (Repository, error) {
	channelPath := filepath.Join(basePath, "channels")
	if err := os.MkdirAll(channelPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create channels directory").Wrap(err)
	}

	return &FileStorage{basePath: channelPath}, nil
}

func (s *FileStorage) SaveChannel(channel *domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(channel, "", "  ")
	if err != nil {
		return oops.With("channel_id", channel.ID, "context", "failed to marshal channel").Wrap(err)
	}

	// write-then-rename so readers never see a torn document
	path := s.path(channel.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return oops.With("channel_id", channel.ID, "context", "failed to write channel").Wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return oops.With("channel_id", channel.ID, "context", "failed to replace channel").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetChannel(channelID string) (*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(channelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.With("channel_id", channelID).Wrap(errors.ErrChannelNotFound)
		}
		return nil, oops.With("channel_id", channelID, "context", "failed to read channel").Wrap(err)
	}

	var channel domain.Channel
	if err := json.Unmarshal(data, &channel); err != nil {
		return nil, oops.With("channel_id", channelID, "context", "failed to unmarshal channel").Wrap(err)
	}

	return &channel, nil
}

// GetAllChannels returns channels ordered by file name, i.e. by chat ID
func (s *FileStorage) GetAllChannels() ([]*domain.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read channels directory").Wrap(err)
	}

	channels := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (*domain.Channel, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return nil, false
		}

		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, false
		}

		var channel domain.Channel
		if err := json.Unmarshal(data, &channel); err != nil {
			return nil, false
		}

		return &channel, true
	})

	return channels, nil
}

func (s *FileStorage) DeleteChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(channelID)); err != nil {
		if os.IsNotExist(err) {
			return oops.With("channel_id", channelID).Wrap(errors.ErrChannelNotFound)
		}
		return oops.With("channel_id", channelID, "context", "failed to delete channel").Wrap(err)
	}
	return nil
}

func (s *FileStorage) path(channelID string) string {
	return filepath.Join(s.basePath, channelID+".json")
}
