package service

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	messageDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	reportDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/samber/lo"
)

var errTransient = errors.New("connection reset")

type fakeDirectory struct {
	channels []channelDomain.Channel
	listErr  error
}

func (d *fakeDirectory) ListChannels(ctx context.Context, guildID string) ([]channelDomain.Channel, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return lo.Filter(d.channels, func(ch channelDomain.Channel, _ int) bool { return ch.GuildID == guildID }), nil
}

func (d *fakeDirectory) FindChannels(ctx context.Context, guildID, token string) ([]channelDomain.Channel, error) {
	channels, err := d.ListChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(token, "#")
	return lo.Filter(channels, func(ch channelDomain.Channel, _ int) bool {
		return ch.ID == token || strings.EqualFold(ch.Title, name)
	}), nil
}

type fakePermissions struct {
	CanReadFunc func(channel channelDomain.Channel) (bool, error)
}

func (p *fakePermissions) CanReadHistory(_ context.Context, _ domain.Identity, channel channelDomain.Channel) (bool, error) {
	if p.CanReadFunc == nil {
		return true, nil
	}
	return p.CanReadFunc(channel)
}

type fakeHistory struct {
	mu       sync.Mutex
	messages map[string][]messageDomain.Message
	// failAfter makes a channel's stream fail once that many messages were yielded
	failAfter map[string]int
	onYield   func(msg messageDomain.Message)
	opened    []string
}

func (h *fakeHistory) Stream(ctx context.Context, channel channelDomain.Channel, after time.Time) iter.Seq2[messageDomain.Message, error] {
	h.mu.Lock()
	h.opened = append(h.opened, channel.ID)
	h.mu.Unlock()

	return func(yield func(messageDomain.Message, error) bool) {
		limit, fails := h.failAfter[channel.ID]
		yielded := 0
		for _, msg := range h.messages[channel.ID] {
			if fails && yielded == limit {
				yield(messageDomain.Message{}, errTransient)
				return
			}
			if !msg.Date.After(after) {
				continue
			}
			if h.onYield != nil {
				h.onYield(msg)
			}
			if !yield(msg, nil) {
				return
			}
			yielded++
		}
		if fails && yielded == limit {
			yield(messageDomain.Message{}, errTransient)
		}
	}
}

func (h *fakeHistory) streamsOpened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...)
}

type fakeRecorder struct {
	reports []*reportDomain.Report
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, report *reportDomain.Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

// messagesBy builds n messages from author, all sent at at
func messagesBy(channelID string, author int64, bot bool, n int, at time.Time) []messageDomain.Message {
	return lo.Times(n, func(i int) messageDomain.Message {
		return messageDomain.Message{
			ID:          author*1000 + int64(i),
			ChannelID:   channelID,
			AuthorID:    author,
			AuthorIsBot: bot,
			Date:        at.Add(time.Duration(i) * time.Second),
		}
	})
}
