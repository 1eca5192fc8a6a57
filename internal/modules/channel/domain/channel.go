package domain

import (
	"strconv"
	"time"

	"github.com/samber/oops"
)

// Channel is a Telegram chat registered in a guild's directory
type Channel struct {
	ID         string    `json:"id"`
	GuildID    string    `json:"guild_id"`
	Username   string    `json:"username"`
	Title      string    `json:"title"`
	Public     bool      `json:"public"`
	AddedBy    int64     `json:"added_by"`
	AddedAt    time.Time `json:"added_at"`
	LastUpdate time.Time `json:"last_update"`
	IsActive   bool      `json:"is_active"`
}

// Name returns the display label used in reports
func (c *Channel) Name() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Username != "":
		return "@" + c.Username
	default:
		return c.ID
	}
}

// ChatID returns the numeric Telegram chat ID
func (c *Channel) ChatID() (int64, error) {
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return 0, oops.With("channel_id", c.ID).Wrapf(err, "channel id is not a chat id")
	}
	return id, nil
}
