package domain

import "time"

// Message is a snapshot of a chat message taken when the bot observed it
type Message struct {
	ID          int64     `json:"id"`
	ChannelID   string    `json:"channel_id"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	AuthorIsBot bool      `json:"author_is_bot"`
	Text        string    `json:"text"`
	Date        time.Time `json:"date"`
}
