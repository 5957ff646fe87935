// Package identity wraps the hosted identity provider (GoTrue-compatible
// REST API). All credential checks and account mutations happen upstream;
// this client is a pass-through and surfaces provider error messages
// verbatim so forms can display them unchanged.
package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// ErrUnauthorized is returned when a bearer token does not resolve to a user.
var ErrUnauthorized = errors.New("unauthorized")

// User is the identity-provider account record.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata carries the free-form profile fields set at sign-up.
type UserMetadata struct {
	Name string `json:"name"`
}

// TokenGrant is the response to a successful password sign-in.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// Client talks to the identity provider. The anon key authenticates end-user
// flows; the service-role key is elevated and used only for admin deletion.
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	httpClient     *http.Client
}

// NewClient creates an identity client.
func NewClient(baseURL, anonKey, serviceRoleKey string) *Client {
	return &Client{
		baseURL:        baseURL,
		anonKey:        anonKey,
		serviceRoleKey: serviceRoleKey,
		httpClient:     &http.Client{},
	}
}

// SignUp registers a new account. The provider sends the confirmation email;
// redirectTo is where its confirmation link lands.
func (c *Client) SignUp(ctx context.Context, email, password, name, redirectTo string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	path := "/signup"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	if err := c.post(ctx, path, c.anonKey, "", body, nil); err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("Sign-up delegated to identity provider")
	return nil
}

// SignIn exchanges credentials for an access token (password grant).
func (c *Client) SignIn(ctx context.Context, email, password string) (*TokenGrant, error) {
	body := map[string]string{"email": email, "password": password}
	var grant TokenGrant
	if err := c.post(ctx, "/token?grant_type=password", c.anonKey, "", body, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// SignOut revokes the bearer token's session upstream.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/logout", c.anonKey, accessToken, nil, nil)
}

// GetUser resolves a bearer token to its account.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, c.anonKey, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// UpdatePassword changes the password of the account behind the bearer token.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, password string) error {
	body := map[string]string{"password": password}
	return c.put(ctx, "/user", accessToken, body)
}

// ResetPasswordForEmail asks the provider to send a recovery email.
// redirectTo is where the recovery link lands.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{"email": email}
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.post(ctx, path, c.anonKey, "", body, nil)
}

// AdminDeleteUser removes an account using the elevated service-role key.
// Deleting an account that no longer exists is not an error, so account
// deletion stays idempotent end to end.
func (c *Client) AdminDeleteUser(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/admin/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, c.serviceRoleKey, c.serviceRoleKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug().Str("userId", userID).Msg("Account already gone upstream")
		return nil
	}
	if resp.StatusCode >= 300 {
		return c.upstreamError(resp)
	}
	log.Info().Str("userId", userID).Msg("Account deleted upstream")
	return nil
}

func (c *Client) setHeaders(req *http.Request, apiKey, bearer string) {
	req.Header.Set("apikey", apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

func (c *Client) post(ctx context.Context, path, apiKey, bearer string, payload, out any) error {
	return c.send(ctx, http.MethodPost, path, apiKey, bearer, payload, out)
}

func (c *Client) put(ctx context.Context, path, bearer string, payload any) error {
	return c.send(ctx, http.MethodPut, path, c.anonKey, bearer, payload, nil)
}

func (c *Client) send(ctx context.Context, method, path, apiKey, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, apiKey, bearer)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.upstreamError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// upstreamError extracts the provider's own message. GoTrue responses carry
// one of msg, message, error_description, or error depending on the endpoint.
func (c *Client) upstreamError(resp *http.Response) error {
	var body struct {
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
		Err         string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &body)

	for _, msg := range []string{body.Msg, body.Message, body.Description, body.Err} {
		if msg != "" {
			return errors.New(msg)
		}
	}
	return fmt.Errorf("identity provider returned status %d", resp.StatusCode)
}
