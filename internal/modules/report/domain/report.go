package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	activityDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/activity/domain"
)

// DateTimeFormat is how search boundaries are printed in summaries
const DateTimeFormat = "2006-01-02 15:04:05 MST"

// Report is a finished activity query
type Report struct {
	ID              uuid.UUID           `json:"id"`
	GuildID         string              `json:"guild_id"`
	Mode            activityDomain.Mode `json:"mode"`
	ContextName     string              `json:"context_name"`
	SearchStart     time.Time           `json:"search_start"`
	Lookback        time.Duration       `json:"lookback"`
	Threshold       uint                `json:"threshold"`
	Metric          uint                `json:"metric"`
	ChannelsScanned int                 `json:"channels_scanned"`
	ChannelsSkipped int                 `json:"channels_skipped"`
	RequestedBy     int64               `json:"requested_by"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// Summary is the human readable rendering of a report
type Summary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func Summarize(r *Report) Summary {
	since := r.SearchStart.UTC().Format(DateTimeFormat)

	var s Summary
	switch r.Mode {
	case activityDomain.ModePerAuthor:
		s.Title = "Active User Count Report"
		s.Description = fmt.Sprintf(
			"Since %s, the channel context %q has seen about %d active %s (sending at least %d %s).",
			since, r.ContextName, r.Metric,
			plural(r.Threshold, "user", "users"), r.Threshold, plural(r.Threshold, "message", "messages"),
		)
	default:
		s.Title = "Message Count Report"
		s.Description = fmt.Sprintf(
			"Since %s, the channel context %q has seen about %d messages.",
			since, r.ContextName, r.Metric,
		)
	}

	if r.ChannelsSkipped > 0 {
		s.Description += fmt.Sprintf(" %d %s skipped.", r.ChannelsSkipped, plural(uint(r.ChannelsSkipped), "channel was", "channels were"))
	}
	return s
}

// plural follows the threshold wording of the summaries: singular only for 1 or less
func plural(n uint, one, many string) string {
	if n > 1 {
		return many
	}
	return one
}
