package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage keeps reports as JSON files grouped by guild. File names start
// with the zero-padded generation time so lexical order is time order.
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based report repository
func NewFileStorage(basePath string) (Repository, error) {
	reportPath := filepath.Join(basePath, "reports")
	if err := os.MkdirAll(reportPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create reports directory").Wrap(err)
	}

	return &FileStorage{basePath: reportPath}, nil
}

func (s *FileStorage) SaveReport(report *domain.Report) error {
	dir, err := s.guildDir(report.GuildID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return oops.With("guild_id", report.GuildID, "context", "failed to create guild report directory").Wrap(err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return oops.With("report_id", report.ID, "context", "failed to marshal report").Wrap(err)
	}

	name := fmt.Sprintf("%020d-%s.json", report.GeneratedAt.UnixNano(), report.ID)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return oops.With("report_id", report.ID, "context", "failed to write report").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetReport(guildID string, id uuid.UUID) (*domain.Report, error) {
	dir, err := s.guildDir(guildID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(dir, "*-"+id.String()+".json"))
	if err != nil {
		return nil, oops.Wrap(err)
	}
	if len(matches) == 0 {
		return nil, oops.With("guild_id", guildID, "report_id", id).Wrap(errors.ErrReportNotFound)
	}
	return readReport(matches[0])
}

func (s *FileStorage) GetRecentReports(guildID string, limit int) ([]*domain.Report, error) {
	dir, err := s.guildDir(guildID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Report{}, nil
		}
		return nil, oops.With("guild_id", guildID, "context", "failed to read guild report directory").Wrap(err)
	}

	names := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		return entry.Name(), !entry.IsDir() && filepath.Ext(entry.Name()) == ".json"
	})
	slices.Sort(names)
	slices.Reverse(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	reports := lo.FilterMap(names, func(name string, _ int) (*domain.Report, bool) {
		report, err := readReport(filepath.Join(dir, name))
		return report, err == nil
	})
	return reports, nil
}

func (s *FileStorage) guildDir(guildID string) (string, error) {
	if guildID == "" || guildID == "." || guildID == ".." || strings.ContainsAny(guildID, `/\`) {
		return "", oops.With("guild_id", guildID).Wrap(errors.ErrGuildNotFound)
	}
	return filepath.Join(s.basePath, guildID), nil
}

func readReport(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.With("path", path, "context", "failed to read report").Wrap(err)
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, oops.With("path", path, "context", "failed to unmarshal report").Wrap(err)
	}
	return &report, nil
}
