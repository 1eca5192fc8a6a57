package repository

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/samber/oops"
	"golang.org/x/time/rate"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// archivedMessage is the table row. SentAt is stored as unix nanoseconds so
// keyset comparisons behave the same on sqlite and postgres.
type archivedMessage struct {
	ChannelID   string `gorm:"primaryKey;size:32;index:idx_channel_sent,priority:1"`
	MessageID   int64  `gorm:"primaryKey;autoIncrement:false"`
	SentAt      int64  `gorm:"not null;index:idx_channel_sent,priority:2"`
	AuthorID    int64
	AuthorName  string
	AuthorIsBot bool
	Text        string
	CreatedAt   time.Time
}

func (archivedMessage) TableName() string {
	return "archived_messages"
}

func (m *archivedMessage) toDomain() domain.Message {
	return domain.Message{
		ID:          m.MessageID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.AuthorID,
		AuthorName:  m.AuthorName,
		AuthorIsBot: m.AuthorIsBot,
		Text:        m.Text,
		Date:        time.Unix(0, m.SentAt).UTC(),
	}
}

// GormStorage implements Repository on top of a SQL database
type GormStorage struct {
	db       *gorm.DB
	limiter  *rate.Limiter
	pageSize int
}

// Open connects to the archive database selected by the config and migrates it
func Open(cfg *config.Config) (Repository, error) {
	var dial gorm.Dialector
	switch cfg.ArchiveDriver {
	case config.ArchiveDriverSQLite:
		if cfg.ArchiveDSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.ArchiveDSN), 0755); err != nil {
				return nil, oops.With("dsn", cfg.ArchiveDSN, "context", "failed to create archive directory").Wrap(err)
			}
		}
		dial = sqlite.Open(cfg.ArchiveDSN)
	case config.ArchiveDriverPostgres:
		dial = postgres.Open(cfg.ArchiveDSN)
	default:
		return nil, oops.With("archive_driver", cfg.ArchiveDriver).Errorf("unsupported archive driver")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, oops.With("archive_driver", cfg.ArchiveDriver, "context", "failed to open archive").Wrap(err)
	}

	if cfg.ArchiveDriver == config.ArchiveDriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, oops.Wrap(err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.HistoryReadsPerSecond), 1)
	return NewGormStorage(db, limiter, cfg.HistoryPageSize)
}

// NewGormStorage wraps an open database. Each page read waits on limiter.
func NewGormStorage(db *gorm.DB, limiter *rate.Limiter, pageSize int) (*GormStorage, error) {
	if err := db.AutoMigrate(&archivedMessage{}); err != nil {
		return nil, oops.With("context", "failed to migrate archive").Wrap(err)
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &GormStorage{db: db, limiter: limiter, pageSize: pageSize}, nil
}

func (s *GormStorage) SaveMessage(ctx context.Context, message *domain.Message) error {
	row := archivedMessage{
		ChannelID:   message.ChannelID,
		MessageID:   message.ID,
		SentAt:      message.Date.UnixNano(),
		AuthorID:    message.AuthorID,
		AuthorName:  message.AuthorName,
		AuthorIsBot: message.AuthorIsBot,
		Text:        message.Text,
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return oops.With("channel_id", message.ChannelID, "message_id", message.ID, "context", "failed to archive message").Wrap(res.Error)
	}
	return nil
}

func (s *GormStorage) Stream(ctx context.Context, channelID string, after time.Time) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		lastSent := after.UnixNano()
		var lastID int64
		first := true

		for {
			if err := s.limiter.Wait(ctx); err != nil {
				yield(domain.Message{}, err)
				return
			}

			q := s.db.WithContext(ctx).Where("channel_id = ?", channelID)
			if first {
				q = q.Where("sent_at > ?", lastSent)
			} else {
				q = q.Where("(sent_at > ? OR (sent_at = ? AND message_id > ?))", lastSent, lastSent, lastID)
			}

			var page []archivedMessage
			if err := q.Order("sent_at ASC, message_id ASC").Limit(s.pageSize).Find(&page).Error; err != nil {
				yield(domain.Message{}, oops.With("channel_id", channelID, "context", "failed to read archive page").Wrap(err))
				return
			}

			for i := range page {
				if err := ctx.Err(); err != nil {
					yield(domain.Message{}, err)
					return
				}
				if !yield(page[i].toDomain(), nil) {
					return
				}
			}

			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			lastSent, lastID, first = last.SentAt, last.MessageID, false
		}
	}
}

func (s *GormStorage) CountMessages(ctx context.Context, channelID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&archivedMessage{}).Where("channel_id = ?", channelID).Count(&n).Error
	if err != nil {
		return 0, oops.With("channel_id", channelID).Wrap(err)
	}
	return n, nil
}

func (s *GormStorage) Purge(ctx context.Context, channelID string) error {
	err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Delete(&archivedMessage{}).Error
	if err != nil {
		return oops.With("channel_id", channelID, "context", "failed to purge archive").Wrap(err)
	}
	return nil
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return oops.Wrap(err)
	}
	return sqlDB.Close()
}
