// Package config provides configuration management for wapi-dashboard.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Defaults for optional settings.
const (
	DefaultPort       = "3000"
	DefaultWebhookURL = "https://webhook.site/11111111-1111-1111-1111-11111111"
)

// Config holds all environment-sourced configuration.
type Config struct {
	// GatewayURL is the base URL of the external WhatsApp HTTP API.
	GatewayURL string
	// IdentityURL is the base URL of the hosted identity provider.
	IdentityURL string
	// AnonKey is the public identity-provider key used for end-user flows.
	AnonKey string
	// ServiceRoleKey is the elevated key used only for account deletion.
	ServiceRoleKey string
	// TokenSecret signs minted API tokens.
	TokenSecret string
	// DatabaseDSN is the Postgres DSN for the token/selection store.
	DatabaseDSN string
	// Port is the HTTP listen port.
	Port string
	// WebhookURL receives message and session.status events for every
	// session created through the dashboard.
	WebhookURL string
	// BaseURL is the public URL of this service, used for identity-provider
	// redirect targets.
	BaseURL string
}

// Load reads configuration from the environment. Optional values fall back
// to defaults; required values are checked by Validate.
func Load() (*Config, error) {
	cfg := &Config{
		GatewayURL:     strings.TrimRight(os.Getenv("WAHA_API_URL"), "/"),
		IdentityURL:    strings.TrimRight(os.Getenv("IDENTITY_URL"), "/"),
		AnonKey:        os.Getenv("IDENTITY_ANON_KEY"),
		ServiceRoleKey: os.Getenv("IDENTITY_SERVICE_ROLE_KEY"),
		TokenSecret:    os.Getenv("TOKEN_SECRET"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		Port:           os.Getenv("PORT"),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		BaseURL:        strings.TrimRight(os.Getenv("BASE_URL"), "/"),
	}

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = DefaultWebhookURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required setting is present. The service fails
// fast at boot rather than at the first upstream call.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"WAHA_API_URL", c.GatewayURL},
		{"IDENTITY_URL", c.IdentityURL},
		{"IDENTITY_ANON_KEY", c.AnonKey},
		{"IDENTITY_SERVICE_ROLE_KEY", c.ServiceRoleKey},
		{"TOKEN_SECRET", c.TokenSecret},
		{"DATABASE_DSN", c.DatabaseDSN},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
