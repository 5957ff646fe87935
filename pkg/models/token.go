package models

import "time"

// APIToken is the single permanent API token minted for an account. At most
// one token is current per account; regeneration replaces the row wholesale.
type APIToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
