package domain

import (
	"time"

	channelDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/channel/domain"
)

// Keywords accepted by the context resolver
const (
	ContextAll    = "all"
	ContextPublic = "public"
)

// DefaultWindow is the lookback used when the caller gives none
const DefaultWindow = "24h"

// DefaultThreshold is the minimum message count of an active user
const DefaultThreshold uint = 10

// ChannelContext is a resolved, deduplicated set of channels to search
type ChannelContext struct {
	Name     string
	Channels []channelDomain.Channel
}

// TimeWindow bounds a search to messages strictly after SearchStart
type TimeWindow struct {
	Lookback    time.Duration
	SearchStart time.Time
}

func NewTimeWindow(lookback time.Duration, now time.Time) TimeWindow {
	return TimeWindow{
		Lookback:    lookback,
		SearchStart: now.Add(-lookback),
	}
}

// Identity is the account whose permissions gate history reads
type Identity struct {
	UserID int64
}

type SkipReason string

const (
	SkipReasonPermission SkipReason = "permission"
	SkipReasonReadError  SkipReason = "read_error"
)

// Skip records a channel left out of an aggregation
type Skip struct {
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	Reason      SkipReason `json:"reason"`
	Err         error      `json:"-"`
}

// Result is the outcome of one aggregation
type Result struct {
	Accumulator Accumulator
	Scanned     int
	Skipped     []Skip
}
