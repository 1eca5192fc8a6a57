package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/feeds"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	activityDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
	activityService "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/service"
	reportDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/config"
	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	sloghttp "github.com/samber/slog-http"
)

// Activity runs activity queries
type Activity interface {
	Run(ctx context.Context, req activityService.Request) (*activityService.Outcome, error)
}

// FeedGenerator builds report feeds
type FeedGenerator interface {
	GenerateFeed(guildID string, baseURL string) (*feeds.Feed, error)
}

// Reports looks up recorded reports
type Reports interface {
	GetReport(guildID string, id uuid.UUID) (*reportDomain.Report, error)
}

// Server exposes health, metrics, activity queries and report feeds
type Server struct {
	cfg         *config.Config
	activity    Activity
	feedService FeedGenerator
	reports     Reports
	logger      *slog.Logger
	server      *http.Server
}

// New creates a new HTTP server
func New(cfg *config.Config, activity Activity, feedService FeedGenerator, reports Reports) *Server {
	return &Server{
		cfg:         cfg,
		activity:    activity,
		feedService: feedService,
		reports:     reports,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handler returns the routed handler wrapped in logging and recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /guilds/{guildID}/activity", s.requireToken(s.handleActivity))
	mux.HandleFunc("GET /guilds/{guildID}/reports.rss", s.handleReportFeed)
	mux.HandleFunc("GET /guilds/{guildID}/reports/{reportID}", s.requireToken(s.handleReport))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	handler := sloghttp.Recovery(mux)
	handler = sloghttp.New(s.logger)(handler)
	return handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.cfg.HTTPPort)
	s.logger.Info("HTTP server starting", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// activity queries scan history and can take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.StatsAPIToken != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.StatsAPIToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

type activityResponse struct {
	Report  *reportDomain.Report  `json:"report"`
	Summary reportDomain.Summary  `json:"summary"`
	Skipped []activityDomain.Skip `json:"skipped"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	query := r.URL.Query()

	req := activityService.Request{
		GuildID: guildID,
		Mode:    activityDomain.ModeCount,
		Context: query.Get("context"),
		Window:  query.Get("window"),
	}
	if mode := query.Get("mode"); mode != "" {
		parsed, err := activityDomain.ParseMode(mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("mode must be one of %s", strings.Join(activityDomain.ModeNames(), ", ")))
			return
		}
		req.Mode = parsed
	}
	if raw := query.Get("threshold"); raw != "" {
		threshold, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		t := uint(threshold)
		req.Threshold = &t
	}

	outcome, err := s.activity.Run(r.Context(), req)
	if err != nil {
		switch {
		case stdErrors.Is(err, errors.ErrInvalidContext):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search context %q", req.Context))
		case stdErrors.Is(err, errors.ErrInvalidDuration):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid time window %q", req.Window))
		case stdErrors.Is(err, context.Canceled):
			s.logger.Info("Activity query cancelled by client", "guild_id", guildID)
		default:
			s.logger.Error("Error running activity query", "guild_id", guildID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to run activity query")
		}
		return
	}

	writeJSON(w, http.StatusOK, activityResponse{
		Report:  outcome.Report,
		Summary: outcome.Summary,
		Skipped: outcome.Skipped,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("reportID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.reports.GetReport(r.PathValue("guildID"), id)
	if err != nil {
		if stdErrors.Is(err, errors.ErrReportNotFound) || stdErrors.Is(err, errors.ErrGuildNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("Error loading report", "report_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	writeJSON(w, http.StatusOK, activityResponse{Report: report, Summary: reportDomain.Summarize(report)})
}

func (s *Server) handleReportFeed(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guildID")
	baseURL := fmt.Sprintf("%s://%s", getScheme(r), r.Host)

	feed, err := s.feedService.GenerateFeed(guildID, baseURL)
	if err != nil {
		if stdErrors.Is(err, errors.ErrGuildNotFound) {
			http.Error(w, "Guild not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Error generating feed", "guild_id", guildID, "error", err)
		http.Error(w, "Failed to generate feed", http.StatusInternalServerError)
		return
	}

	rss, err := feed.ToRss()
	if err != nil {
		s.logger.Error("Error converting feed to RSS", "error", err)
		http.Error(w, "Failed to generate RSS", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rss))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Guild Activity Bot</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .info { background: #f5f5f5; padding: 15px; border-radius: 5px; margin: 20px 0; }
        code { background: #e8e8e8; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>Guild Activity Bot</h1>
    <div class="info">
        <p>Approximate message and active user counts for guild chats.</p>
        <p>Query activity: <code>/guilds/{guildID}/activity?mode=per_author&amp;context=all&amp;window=7d&amp;threshold=10</code></p>
        <p>Report feed: <code>/guilds/{guildID}/reports.rss</code></p>
    </div>
    <p><a href="/health">Health Check</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
