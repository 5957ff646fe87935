package db

import (
	"time"

	"gorm.io/gorm"
)

// APIToken is one row of the api_tokens table. The table may briefly hold
// history, but reads always take the most recent row and regeneration
// replaces all rows for the account in one transaction.
type APIToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"index;not null"`
	Token     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_api_tokens_created,sort:desc;not null"`
}

func (APIToken) TableName() string { return "api_tokens" }

// BeforeCreate hook to ensure the timestamp is set.
func (t *APIToken) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return nil
}

// UISelection persists the last-selected session name per account. It is a
// weak reference: the session may no longer exist, in which case the
// dashboard clears the row on its next successful list fetch.
type UISelection struct {
	UserID      string    `gorm:"primaryKey"`
	SessionName string    `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (UISelection) TableName() string { return "ui_selections" }
