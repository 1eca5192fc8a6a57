// Package errors holds the sentinel errors shared across modules.
// Callers wrap them with oops so errors.Is keeps matching.
package errors

import "errors"

var (
	ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrUnauthorized    = errors.New("unauthorized user")
	ErrChannelNotFound = errors.New("channel not found")
	ErrGuildNotFound   = errors.New("guild not found")
	ErrReportNotFound  = errors.New("report not found")

	// ErrInvalidContext means a search context token could not be resolved to channels.
	ErrInvalidContext = errors.New("invalid search context")
	// ErrInvalidDuration means a time window string did not match #d#h#m#s.
	ErrInvalidDuration = errors.New("invalid time window")
)
