package domain

import "time"

// User is a bot operator allowed to manage the channel directory
type User struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	AddedAt  time.Time `json:"added_at"`
	IsAdmin  bool      `json:"is_admin"`
}
