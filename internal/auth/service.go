// Package auth implements the account flows of the dashboard: sign-up,
// sign-in, password reset, account deletion, and API token issuance.
// Validation happens locally before any network call; everything else is
// delegated to the identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/DhisHub/wapi-dashboard/internal/db"
	"github.com/DhisHub/wapi-dashboard/internal/identity"
	"github.com/DhisHub/wapi-dashboard/pkg/models"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// Validation errors. These are reported inline to the form and never reach
// the identity provider.
var (
	ErrMissingCredentials = errors.New("Email and password are required.")
	ErrPasswordTooShort   = errors.New("Password must be at least 6 characters long.")
	ErrMissingEmail       = errors.New("Email is required")
	ErrMissingPasswords   = errors.New("Password and confirm password are required")
	ErrPasswordMismatch   = errors.New("Passwords do not match")
)

// IdentityProvider is the subset of the identity client the service needs.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, name, redirectTo string) error
	SignIn(ctx context.Context, email, password string) (*identity.TokenGrant, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
	UpdatePassword(ctx context.Context, accessToken, password string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	AdminDeleteUser(ctx context.Context, userID string) error
}

// Service wires identity flows to the token store.
type Service struct {
	provider IdentityProvider
	tokens   *db.TokenStore
	secret   []byte
	baseURL  string
}

// NewService creates the auth service. secret signs minted API tokens;
// baseURL is where identity-provider email links redirect back to.
func NewService(provider IdentityProvider, tokens *db.TokenStore, secret, baseURL string) *Service {
	return &Service{
		provider: provider,
		tokens:   tokens,
		secret:   []byte(secret),
		baseURL:  baseURL,
	}
}

// SignUp validates the form and delegates registration. Sign-up does not
// mint an API token; tokens exist only via explicit generation.
func (s *Service) SignUp(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return ErrMissingCredentials
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return s.provider.SignUp(ctx, email, password, name, s.baseURL+"/auth/callback")
}

// SignIn validates presence and delegates the credential check. The
// provider's error message is returned verbatim on failure.
func (s *Service) SignIn(ctx context.Context, email, password string) (*identity.TokenGrant, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	return s.provider.SignIn(ctx, email, password)
}

// SignOut revokes the session upstream.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}

// ForgotPassword starts the two-step reset: the provider emails a recovery
// link pointing at the reset form.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return ErrMissingEmail
	}
	return s.provider.ResetPasswordForEmail(ctx, email, s.baseURL+"/reset-password")
}

// ResetPassword is the confirmation step. The mismatch and length checks run
// locally before any network call.
func (s *Service) ResetPassword(ctx context.Context, accessToken, password, confirmPassword string) error {
	if password == "" || confirmPassword == "" {
		return ErrMissingPasswords
	}
	if password != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return s.provider.UpdatePassword(ctx, accessToken, password)
}

// DeleteAccount removes the identity record with elevated credentials, then
// every token row for the account. Both halves tolerate the target already
// being gone, so the whole operation is idempotent.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.provider.AdminDeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if err := s.tokens.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	log.Info().Str("userId", userID).Msg("Account and tokens deleted")
	return nil
}

// GenerateToken mints a signed API token carrying only the account id (no
// expiry claim) and makes it the account's single current token.
func (s *Service) GenerateToken(ctx context.Context, userID string) (*models.APIToken, error) {
	claims := jwt.MapClaims{"id": userID}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	token, err := s.tokens.Replace(ctx, userID, signed)
	if err != nil {
		return nil, err
	}
	log.Info().Str("userId", userID).Msg("API token regenerated")
	return token, nil
}

// CurrentToken returns the account's current API token, or db.ErrNoToken.
func (s *Service) CurrentToken(ctx context.Context, userID string) (*models.APIToken, error) {
	return s.tokens.Current(ctx, userID)
}

// ParseToken verifies a minted API token and returns the account id it was
// issued for. Tokens never expire; revocation is replacement.
func (s *Service) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return "", errors.New("token has no account id")
	}
	return id, nil
}
