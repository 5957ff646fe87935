// Package gateway provides the typed client for the external WhatsApp HTTP
// API (the Session Gateway). All session lifecycle, pairing, and transport
// logic lives in the gateway; this client only issues REST calls and decodes
// the results. No retry, no backoff; a failed call surfaces immediately.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/DhisHub/wapi-dashboard/pkg/models"
)

// Action is a lifecycle action the gateway accepts on a session.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionLogout  Action = "logout"
)

// Valid reports whether the action is one the gateway accepts.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionLogout:
		return true
	}
	return false
}

// Client talks to a single Session Gateway instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client for the given base URL.
// No timeout is set on the underlying client; a hung gateway call hangs the
// corresponding dashboard panel, matching the observed contract. Callers can
// bound individual calls through the context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// CreateSessionRequest carries everything needed to create a session.
type CreateSessionRequest struct {
	Name       string
	OwnerID    string
	OwnerEmail string
	// ContactEmail and ContactTell are free-form contact fields shown in the
	// session list; the gateway stores them as opaque metadata.
	ContactEmail string
	ContactTell  string
	WebhookURL   string
}

// createSessionBody is the wire shape the gateway expects.
type createSessionBody struct {
	Name   string        `json:"name"`
	Start  bool          `json:"start"`
	Config sessionConfig `json:"config"`
}

type sessionConfig struct {
	Metadata map[string]string `json:"metadata"`
	Proxy    *string           `json:"proxy"`
	Debug    bool              `json:"debug"`
	Noweb    nowebConfig       `json:"noweb"`
	Webhooks []webhookConfig   `json:"webhooks"`
}

type nowebConfig struct {
	Store nowebStoreConfig `json:"store"`
}

type nowebStoreConfig struct {
	Enabled  bool `json:"enabled"`
	FullSync bool `json:"fullSync"`
}

type webhookConfig struct {
	URL           string            `json:"url"`
	Events        []string          `json:"events"`
	HMAC          *string           `json:"hmac"`
	Retries       *int              `json:"retries"`
	CustomHeaders map[string]string `json:"customHeaders"`
}

// CreateSession creates and starts a session owned by the given account.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) error {
	body := createSessionBody{
		Name:  req.Name,
		Start: true,
		Config: sessionConfig{
			Metadata: map[string]string{
				models.MetaUserID:       req.OwnerID,
				models.MetaUserEmail:    req.OwnerEmail,
				models.MetaSessionEmail: req.ContactEmail,
				models.MetaSessionTell:  req.ContactTell,
			},
			Noweb: nowebConfig{Store: nowebStoreConfig{Enabled: true}},
			Webhooks: []webhookConfig{
				{
					URL:    req.WebhookURL,
					Events: []string{"message", "session.status"},
				},
			},
		},
	}

	if err := c.post(ctx, "/api/sessions", body); err != nil {
		return err
	}

	log.Info().
		Str("session", req.Name).
		Str("owner", req.OwnerID).
		Msg("Session created")
	return nil
}

// ListSessions returns every session the gateway knows about, across all
// owners. The gateway listing is unscoped; callers must filter by owner id.
func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	if err := c.getJSON(ctx, "/api/sessions?all=true", &sessions); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns the current status of a single session.
func (c *Client) GetSession(ctx context.Context, name string) (*models.Session, error) {
	var session models.Session
	path := "/api/sessions/" + url.PathEscape(name)
	if err := c.getJSON(ctx, path, &session); err != nil {
		return nil, fmt.Errorf("get session %q: %w", name, err)
	}
	return &session, nil
}

// QRCode fetches the pairing QR image for a session. The payload is opaque
// binary rendered as-is; the client tracks no expiry.
func (c *Client) QRCode(ctx context.Context, name string) ([]byte, string, error) {
	path := "/api/" + url.PathEscape(name) + "/auth/qr?format=image"
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.upstreamError(resp, "fetch QR code")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read QR image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

// screenshotResponse is the JSON envelope around the base64 screenshot.
type screenshotResponse struct {
	Data string `json:"data"`
}

// Screenshot fetches the latest chat screenshot for a session and returns
// the raw base64 payload. The dashboard renders it as a data URL.
func (c *Client) Screenshot(ctx context.Context, name string) (string, error) {
	var body screenshotResponse
	path := "/api/screenshot?session=" + url.QueryEscape(name)
	if err := c.getJSON(ctx, path, &body); err != nil {
		return "", fmt.Errorf("fetch screenshot: %w", err)
	}
	if body.Data == "" {
		return "", fmt.Errorf("no image data in response")
	}
	return body.Data, nil
}

// Lifecycle requests a start/stop/restart/logout transition. The gateway
// applies it asynchronously; callers re-poll to observe the result.
func (c *Client) Lifecycle(ctx context.Context, name string, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown session action %q", action)
	}
	path := "/api/sessions/" + url.PathEscape(name) + "/" + string(action)
	if err := c.post(ctx, path, nil); err != nil {
		return fmt.Errorf("%s session: %w", action, err)
	}
	log.Info().Str("session", name).Str("action", string(action)).Msg("Session action requested")
	return nil
}

// DeleteSession removes a session from the gateway.
func (c *Client) DeleteSession(ctx context.Context, name string) error {
	path := "/api/sessions/" + url.PathEscape(name)
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.upstreamError(resp, "delete session")
	}
	log.Info().Str("session", name).Msg("Session deleted")
	return nil
}

// do issues a single request with an optional JSON body.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	return resp, nil
}

// getJSON issues a GET and decodes a JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.upstreamError(resp, "")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// post issues a POST with an optional JSON body and discards the response
// body on success.
func (c *Client) post(ctx context.Context, path string, payload any) error {
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.upstreamError(resp, "")
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// upstreamError turns a non-success gateway response into an error carrying
// the gateway's own message where it provides one.
func (c *Client) upstreamError(resp *http.Response, op string) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &body)

	msg := body.Message
	if msg == "" {
		msg = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
	}
	if op != "" {
		return fmt.Errorf("%s: %s", op, msg)
	}
	return fmt.Errorf("%s", msg)
}
