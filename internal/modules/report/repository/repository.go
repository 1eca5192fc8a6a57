package repository

import (
	"github.com/google/uuid"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
)

// Repository defines the interface for the report log
type Repository interface {
	SaveReport(report *domain.Report) error
	GetReport(guildID string, id uuid.UUID) (*domain.Report, error)
	// GetRecentReports returns up to limit reports of a guild, newest first
	GetRecentReports(guildID string, limit int) ([]*domain.Report, error)
}
