package service

import (
	"log/slog"
	"slices"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/user/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/user/repository"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service tracks bot operators
type Service struct {
	cfg  *config.Config
	repo repository.Repository
}

// New creates a new user service
func New(cfg *config.Config, repo repository.Repository) *Service {
	return &Service{
		cfg:  cfg,
		repo: repo,
	}
}

// SeedOperators stores configured operators that are not yet known
func (s *Service) SeedOperators() error {
	known, err := s.repo.GetAllUsers()
	if err != nil {
		return err
	}
	knownIDs := lo.Map(known, func(u *domain.User, _ int) int64 { return u.ID })

	for _, id := range s.cfg.AllowedUsers {
		if slices.Contains(knownIDs, id) {
			continue
		}
		if err := s.repo.SaveUser(&domain.User{ID: id, AddedAt: time.Now(), IsAdmin: true}); err != nil {
			return oops.With("user_id", id).Wrap(err)
		}
		slog.Info("Operator registered", "user_id", id)
	}
	return nil
}

// Touch refreshes the stored username of a known operator
func (s *Service) Touch(userID int64, username string) {
	user, err := s.repo.GetUser(userID)
	if err != nil || user.Username == username {
		return
	}
	user.Username = username
	if err := s.repo.SaveUser(user); err != nil {
		slog.Error("Failed to update operator", "user_id", userID, "error", err)
	}
}

// Operators lists operators ordered by ID
func (s *Service) Operators() ([]*domain.User, error) {
	users, err := s.repo.GetAllUsers()
	if err != nil {
		return nil, err
	}
	users = lo.Filter(users, func(u *domain.User, _ int) bool {
		return u.IsAdmin && s.IsAuthorized(u.ID)
	})
	slices.SortFunc(users, func(a, b *domain.User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return users, nil
}

// IsAuthorized checks whether a user may manage the directory. With no
// configured operators there are no restrictions.
func (s *Service) IsAuthorized(userID int64) bool {
	if len(s.cfg.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedUsers, userID)
}

// IsOperator reports whether the user is an explicitly configured operator
func (s *Service) IsOperator(userID int64) bool {
	return slices.Contains(s.cfg.AllowedUsers, userID)
}
