package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/DhisHub/wapi-dashboard/pkg/models"
)

// ErrNoToken is returned when an account has no current token.
var ErrNoToken = errors.New("no token for account")

// TokenStore provides api_tokens operations.
type TokenStore struct {
	store *Store
}

// NewTokenStore creates a new token store.
func NewTokenStore(store *Store) *TokenStore {
	return &TokenStore{store: store}
}

// Replace makes token the single current token for the account: all prior
// rows are deleted and the new row inserted in one transaction, so two
// concurrent regenerations serialize instead of leaving both rows behind.
func (s *TokenStore) Replace(ctx context.Context, userID, token string) (*models.APIToken, error) {
	row := &APIToken{UserID: userID, Token: token}

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&APIToken{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("replace token: %w", err)
	}

	return &models.APIToken{
		UserID:    row.UserID,
		Token:     row.Token,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Current returns the account's most recent token, or ErrNoToken.
func (s *TokenStore) Current(ctx context.Context, userID string) (*models.APIToken, error) {
	var row APIToken
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("fetch token: %w", err)
	}

	return &models.APIToken{
		UserID:    row.UserID,
		Token:     row.Token,
		CreatedAt: row.CreatedAt,
	}, nil
}

// DeleteForUser removes every token row for the account. Zero rows is not an
// error; account deletion relies on this being idempotent.
func (s *TokenStore) DeleteForUser(ctx context.Context, userID string) error {
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&APIToken{}).Error
	if err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}
