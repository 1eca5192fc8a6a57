package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	reportDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/samber/oops"
)

// ReportRecorder stores finished reports
type ReportRecorder interface {
	Record(ctx context.Context, report *reportDomain.Report) error
}

// Request is one activity query. Empty fields take the mode's defaults.
type Request struct {
	GuildID     string
	Mode        domain.Mode
	Context     string
	Window      string
	Threshold   *uint
	RequestedBy int64
}

// Outcome is a finished query with its rendered summary
type Outcome struct {
	Report  *reportDomain.Report
	Skipped []domain.Skip
	Summary reportDomain.Summary
}

// Service runs activity queries end to end
type Service struct {
	resolver *Resolver
	engine   *Engine
	reports  ReportRecorder
	now      func() time.Time
}

// New creates a new activity service
func New(directory Directory, permissions PermissionChecker, history HistorySource, reports ReportRecorder) *Service {
	return &Service{
		resolver: NewResolver(directory),
		engine:   NewEngine(permissions, history),
		reports:  reports,
		now:      time.Now,
	}
}

// Run resolves the context, parses the window, aggregates and reports.
// Input errors are returned before any history is read.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	if !req.Mode.IsValid() {
		return nil, oops.Code("invalid_mode").With("mode", req.Mode).Wrap(domain.ErrInvalidMode)
	}
	req = withDefaults(req)

	cc, err := s.resolver.Resolve(ctx, req.Context, req.GuildID)
	if err != nil {
		return nil, err
	}

	lookback, err := domain.ParseDuration(req.Window)
	if err != nil {
		return nil, err
	}
	window := domain.NewTimeWindow(lookback, s.now().UTC())

	slog.Info("Aggregating channel activity",
		"guild_id", req.GuildID,
		"mode", req.Mode,
		"context", cc.Name,
		"channels", len(cc.Channels),
		"lookback", lookback,
		"requested_by", req.RequestedBy,
	)

	result, err := s.engine.Aggregate(ctx, cc, window, req.Mode, domain.Identity{UserID: req.RequestedBy})
	if err != nil {
		return nil, err
	}

	metric, err := domain.Report(result.Accumulator, req.Mode, *req.Threshold)
	if err != nil {
		return nil, err
	}

	report := &reportDomain.Report{
		GuildID:         req.GuildID,
		Mode:            req.Mode,
		ContextName:     cc.Name,
		SearchStart:     window.SearchStart,
		Lookback:        lookback,
		Threshold:       *req.Threshold,
		Metric:          metric,
		ChannelsScanned: result.Scanned,
		ChannelsSkipped: len(result.Skipped),
		RequestedBy:     req.RequestedBy,
		GeneratedAt:     s.now().UTC(),
	}

	if s.reports != nil {
		if err := s.reports.Record(ctx, report); err != nil {
			slog.Error("Failed to record report", "guild_id", req.GuildID, "error", err)
		}
	}

	return &Outcome{
		Report:  report,
		Skipped: result.Skipped,
		Summary: reportDomain.Summarize(report),
	}, nil
}

func withDefaults(req Request) Request {
	if req.Context == "" {
		if req.Mode == domain.ModePerAuthor {
			req.Context = domain.ContextAll
		} else {
			req.Context = domain.ContextPublic
		}
	}
	if req.Window == "" {
		req.Window = domain.DefaultWindow
	}
	if req.Threshold == nil {
		threshold := domain.DefaultThreshold
		req.Threshold = &threshold
	}
	return req
}
