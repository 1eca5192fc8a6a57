package service

import (
	"fmt"
	"html"

	"github.com/gorilla/feeds"
	reportDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/report/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FeedSize is how many recent reports a feed carries
const FeedSize = 50

// ReportSource lists a guild's recent reports, newest first
type ReportSource interface {
	Recent(guildID string, limit int) ([]*reportDomain.Report, error)
}

// Service handles report feed generation
type Service struct {
	reports ReportSource
}

// New creates a new feed service
func New(reports ReportSource) *Service {
	return &Service{
		reports: reports,
	}
}

// GenerateFeed builds a feed of a guild's recent activity reports
func (s *Service) GenerateFeed(guildID string, baseURL string) (*feeds.Feed, error) {
	reports, err := s.reports.Recent(guildID, FeedSize)
	if err != nil {
		return nil, oops.With("guild_id", guildID, "context", "failed to get reports").Wrap(err)
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - Activity Reports", guildID),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/guilds/%s/reports.rss", baseURL, guildID)},
		Description: fmt.Sprintf("Message and active user reports for guild %s", guildID),
	}
	if len(reports) > 0 {
		feed.Updated = reports[0].GeneratedAt
		feed.Created = reports[len(reports)-1].GeneratedAt
	}

	feed.Items = lo.Map(reports, func(r *reportDomain.Report, _ int) *feeds.Item {
		return s.reportToFeedItem(r, baseURL)
	})
	return feed, nil
}

func (s *Service) reportToFeedItem(r *reportDomain.Report, baseURL string) *feeds.Item {
	summary := reportDomain.Summarize(r)

	content := fmt.Sprintf("<p>%s</p>", html.EscapeString(summary.Description))
	content += fmt.Sprintf("<ul><li>Channels scanned: %d</li><li>Channels skipped: %d</li><li>Lookback: %s</li></ul>",
		r.ChannelsScanned, r.ChannelsSkipped, r.Lookback)

	return &feeds.Item{
		Title:       fmt.Sprintf("%s: %d (%s)", summary.Title, r.Metric, r.ContextName),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/guilds/%s/reports/%s", baseURL, r.GuildID, r.ID)},
		Description: summary.Description,
		Content:     content,
		Author:      &feeds.Author{Name: fmt.Sprintf("%d", r.RequestedBy)},
		Created:     r.GeneratedAt,
		Id:          r.ID.String(),
	}
}
