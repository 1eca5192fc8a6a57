package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/user/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage implements user.Repository using file system
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based user repository
func NewFileStorage(basePath string) (Repository, error) {
	userPath := filepath.Join(basePath, "users")
	if err := os.MkdirAll(userPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create users directory").Wrap(err)
	}

	return &FileStorage{basePath: userPath}, nil
}

func (s *FileStorage) SaveUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return oops.With("user_id", user.ID, "context", "failed to marshal user").Wrap(err)
	}

	if err := os.WriteFile(s.path(user.ID), data, 0644); err != nil {
		return oops.With("user_id", user.ID, "context", "failed to write user").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetUser(userID int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.With("user_id", userID).Wrap(errors.ErrUnauthorized)
		}
		return nil, oops.With("user_id", userID, "context", "failed to read user").Wrap(err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to unmarshal user").Wrap(err)
	}

	return &user, nil
}

func (s *FileStorage) GetAllUsers() ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read users directory").Wrap(err)
	}

	users := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (*domain.User, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return nil, false
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, false
		}
		var user domain.User
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, false
		}
		return &user, true
	})

	return users, nil
}

func (s *FileStorage) path(userID int64) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%d.json", userID))
}
