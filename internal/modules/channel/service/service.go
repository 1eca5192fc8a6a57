package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	channelRepo "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/repository"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service is the guild channel directory. It keeps active channels in
// memory and flushes last-seen timestamps to storage on a ticker.
type Service struct {
	cfg         *config.Config
	channelRepo channelRepo.Repository
	channels    map[string]*domain.Channel
	seen        map[string]time.Time
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a new channel directory
func New(cfg *config.Config, channelRepo channelRepo.Repository) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:         cfg,
		channelRepo: channelRepo,
		channels:    make(map[string]*domain.Channel),
		seen:        make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start loads registered channels and begins the flush loop
func (s *Service) Start(ctx context.Context) error {
	channels, err := s.channelRepo.GetAllChannels()
	if err != nil {
		return oops.With("context", "failed to load channels").Wrap(err)
	}

	s.mu.Lock()
	for _, ch := range channels {
		if ch.IsActive {
			s.channels[ch.ID] = ch
		}
	}
	loaded := len(s.channels)
	s.mu.Unlock()

	slog.Info("Channel directory loaded", "channels", loaded)

	s.wg.Add(1)
	go s.monitorLoop()
	return nil
}

// Stop stops the flush loop and writes pending timestamps
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.flushSeen()
}

// Register adds or replaces a channel in a guild
func (s *Service) Register(ctx context.Context, channel *domain.Channel) error {
	if channel.GuildID == "" {
		return oops.With("channel_id", channel.ID).Wrap(errors.ErrGuildNotFound)
	}
	if channel.AddedAt.IsZero() {
		channel.AddedAt = time.Now()
	}
	channel.IsActive = true

	if err := s.channelRepo.SaveChannel(channel); err != nil {
		return oops.With("channel_id", channel.ID, "guild_id", channel.GuildID).Wrap(err)
	}

	s.mu.Lock()
	s.channels[channel.ID] = channel
	s.mu.Unlock()
	return nil
}

// Remove deletes a channel from the directory
func (s *Service) Remove(ctx context.Context, channelID string) (*domain.Channel, error) {
	channel, err := s.channelRepo.GetChannel(channelID)
	if err != nil {
		return nil, err
	}
	if err := s.channelRepo.DeleteChannel(channelID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.channels, channelID)
	delete(s.seen, channelID)
	s.mu.Unlock()
	return channel, nil
}

// ListChannels enumerates a guild's active channels in registration order
func (s *Service) ListChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	channels := lo.FilterMap(lo.Values(s.channels), func(ch *domain.Channel, _ int) (domain.Channel, bool) {
		return *ch, ch.GuildID == guildID
	})
	s.mu.RUnlock()

	slices.SortFunc(channels, func(a, b domain.Channel) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return channels, nil
}

// FindChannels returns the guild channels a reference token names. The
// token may be a chat ID, an @username, a #title or a bare title. An ID
// match wins over name matches.
func (s *Service) FindChannels(ctx context.Context, guildID, token string) ([]domain.Channel, error) {
	channels, err := s.ListChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return []domain.Channel{}, nil
	}

	if byID := lo.Filter(channels, func(ch domain.Channel, _ int) bool { return ch.ID == token }); len(byID) > 0 {
		return byID, nil
	}

	if username, ok := strings.CutPrefix(token, "@"); ok {
		return lo.Filter(channels, func(ch domain.Channel, _ int) bool {
			return ch.Username != "" && strings.EqualFold(ch.Username, username)
		}), nil
	}

	name := strings.TrimPrefix(token, "#")
	return lo.Filter(channels, func(ch domain.Channel, _ int) bool {
		return strings.EqualFold(ch.Title, name) || (ch.Username != "" && strings.EqualFold(ch.Username, name))
	}), nil
}

// GuildOf returns the guild a chat is registered in
func (s *Service) GuildOf(chatID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[chatID]
	if !ok {
		return "", false
	}
	return ch.GuildID, true
}

// IsMonitored reports whether messages of a chat should be archived
func (s *Service) IsMonitored(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[chatID]
	return ok
}

// Guilds returns the distinct guild IDs with at least one channel
func (s *Service) Guilds() []string {
	s.mu.RLock()
	guilds := lo.Uniq(lo.Map(lo.Values(s.channels), func(ch *domain.Channel, _ int) string {
		return ch.GuildID
	}))
	s.mu.RUnlock()
	slices.Sort(guilds)
	return guilds
}

// MarkSeen records that a message from the chat was archived at the given time
func (s *Service) MarkSeen(chatID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[chatID]; !ok {
		return
	}
	if at.After(s.seen[chatID]) {
		s.seen[chatID] = at
	}
}

func (s *Service) monitorLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.UpdateInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flushSeen()
		}
	}
}

func (s *Service) flushSeen() {
	s.mu.Lock()
	pending := s.seen
	s.seen = make(map[string]time.Time)
	updated := make([]*domain.Channel, 0, len(pending))
	for id, at := range pending {
		ch, ok := s.channels[id]
		if !ok {
			continue
		}
		ch.LastUpdate = at
		copied := *ch
		updated = append(updated, &copied)
	}
	s.mu.Unlock()

	for _, ch := range updated {
		if err := s.channelRepo.SaveChannel(ch); err != nil {
			slog.Error("Failed to update channel last update time", "channel_id", ch.ID, "error", err)
		}
	}
	if len(updated) > 0 {
		slog.Debug("Channel timestamps flushed", "channels", len(updated))
	}
}
