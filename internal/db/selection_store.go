package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SelectionStore persists the last-selected session name per account. It is
// the server-side counterpart of the browser localStorage key the dashboard
// previously used.
type SelectionStore struct {
	store *Store
}

// NewSelectionStore creates a new selection store.
func NewSelectionStore(store *Store) *SelectionStore {
	return &SelectionStore{store: store}
}

// Save upserts the selection for an account.
func (s *SelectionStore) Save(ctx context.Context, userID, sessionName string) error {
	row := &UISelection{
		UserID:      userID,
		SessionName: sessionName,
		UpdatedAt:   time.Now(),
	}
	err := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"session_name", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// Get returns the persisted selection, or "" when none exists.
func (s *SelectionStore) Get(ctx context.Context, userID string) (string, error) {
	var row UISelection
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch selection: %w", err)
	}
	return row.SessionName, nil
}

// Clear removes the persisted selection. Used when the referenced session is
// gone from the gateway list; clearing an absent row is not an error.
func (s *SelectionStore) Clear(ctx context.Context, userID string) error {
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&UISelection{}).Error
	if err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	return nil
}
