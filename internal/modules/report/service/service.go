package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/report/repository"
)

// Service is the log of completed activity reports
type Service struct {
	repo repository.Repository
}

// New creates a new report service
func New(repo repository.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Record assigns an ID and timestamp when missing and stores the report
func (s *Service) Record(ctx context.Context, report *domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}
	return s.repo.SaveReport(report)
}

// GetReport retrieves a single report of a guild
func (s *Service) GetReport(guildID string, id uuid.UUID) (*domain.Report, error) {
	return s.repo.GetReport(guildID, id)
}

// Recent returns the newest reports of a guild
func (s *Service) Recent(guildID string, limit int) ([]*domain.Report, error) {
	return s.repo.GetRecentReports(guildID, limit)
}
