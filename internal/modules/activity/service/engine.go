package service

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
	messageDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
)

// PermissionChecker decides whether an identity may read a channel's history
type PermissionChecker interface {
	CanReadHistory(ctx context.Context, identity domain.Identity, channel channelDomain.Channel) (bool, error)
}

// HistorySource streams a channel's messages sent strictly after a time, oldest first
type HistorySource interface {
	Stream(ctx context.Context, channel channelDomain.Channel, after time.Time) iter.Seq2[messageDomain.Message, error]
}

// Engine folds channel histories into an accumulator
type Engine struct {
	permissions PermissionChecker
	history     HistorySource
}

func NewEngine(permissions PermissionChecker, history HistorySource) *Engine {
	return &Engine{permissions: permissions, history: history}
}

// Aggregate visits the context's channels one at a time. Unreadable channels
// and channels whose stream fails are skipped; a failed stream contributes
// nothing. Cancellation aborts the whole aggregation.
func (e *Engine) Aggregate(ctx context.Context, cc domain.ChannelContext, window domain.TimeWindow, mode domain.Mode, identity domain.Identity) (domain.Result, error) {
	total, err := domain.NewAccumulator(mode)
	if err != nil {
		return domain.Result{}, err
	}

	start := time.Now()
	result := domain.Result{Accumulator: total, Skipped: []domain.Skip{}}

	for _, ch := range cc.Channels {
		if err := ctx.Err(); err != nil {
			aggregationCount.WithLabelValues(mode.String(), "cancelled").Inc()
			return domain.Result{}, err
		}

		allowed, err := e.permissions.CanReadHistory(ctx, identity, ch)
		if err != nil && ctx.Err() != nil {
			aggregationCount.WithLabelValues(mode.String(), "cancelled").Inc()
			return domain.Result{}, ctx.Err()
		}
		if err != nil || !allowed {
			slog.Info("No permission to read channel history", "channel_id", ch.ID, "channel", ch.Name(), "error", err)
			result.Skipped = append(result.Skipped, skip(ch, domain.SkipReasonPermission, err))
			continue
		}

		partial, n, err := e.fold(ctx, ch, window, mode)
		if ctxErr := ctx.Err(); ctxErr != nil {
			aggregationCount.WithLabelValues(mode.String(), "cancelled").Inc()
			return domain.Result{}, ctxErr
		}
		if err != nil {
			slog.Warn("Failed to read channel history", "channel_id", ch.ID, "channel", ch.Name(), "error", err)
			result.Skipped = append(result.Skipped, skip(ch, domain.SkipReasonReadError, err))
			continue
		}

		if err := total.Merge(partial); err != nil {
			return domain.Result{}, err
		}
		result.Scanned++
		messagesScanned.WithLabelValues(mode.String()).Add(float64(n))
		slog.Debug("Channel history folded", "channel_id", ch.ID, "messages", n)
	}

	aggregationCount.WithLabelValues(mode.String(), "completed").Inc()
	aggregationDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	return result, nil
}

// fold consumes one channel's stream into a fresh accumulator
func (e *Engine) fold(ctx context.Context, ch channelDomain.Channel, window domain.TimeWindow, mode domain.Mode) (domain.Accumulator, int, error) {
	acc, err := domain.NewAccumulator(mode)
	if err != nil {
		return nil, 0, err
	}

	n := 0
	for msg, err := range e.history.Stream(ctx, ch, window.SearchStart) {
		if err != nil {
			return nil, n, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, n, ctxErr
		}
		if !msg.Date.After(window.SearchStart) {
			continue
		}
		acc.Add(&msg)
		n++
	}
	return acc, n, nil
}

func skip(ch channelDomain.Channel, reason domain.SkipReason, err error) domain.Skip {
	channelsSkipped.WithLabelValues(string(reason)).Inc()
	return domain.Skip{ChannelID: ch.ID, ChannelName: ch.Name(), Reason: reason, Err: err}
}
