// Package config provides configuration management for wapi-dashboard.
package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	saved map[string]string
}

var configVars = []string{
	"WAHA_API_URL", "IDENTITY_URL", "IDENTITY_ANON_KEY",
	"IDENTITY_SERVICE_ROLE_KEY", "TOKEN_SECRET", "DATABASE_DSN",
	"PORT", "WEBHOOK_URL", "BASE_URL",
}

func (s *ConfigSuite) SetupTest() {
	s.saved = make(map[string]string)
	for _, v := range configVars {
		s.saved[v] = os.Getenv(v)
		os.Unsetenv(v)
	}
}

func (s *ConfigSuite) TearDownTest() {
	for _, v := range configVars {
		if s.saved[v] == "" {
			os.Unsetenv(v)
		} else {
			os.Setenv(v, s.saved[v])
		}
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) setRequired() {
	os.Setenv("WAHA_API_URL", "http://gateway.local:3000")
	os.Setenv("IDENTITY_URL", "http://identity.local:9999")
	os.Setenv("IDENTITY_ANON_KEY", "anon-key")
	os.Setenv("IDENTITY_SERVICE_ROLE_KEY", "service-key")
	os.Setenv("TOKEN_SECRET", "secret")
	os.Setenv("DATABASE_DSN", "postgres://localhost/wapi")
}

// TestLoad tests a fully specified environment.
func (s *ConfigSuite) TestLoad() {
	s.setRequired()
	os.Setenv("PORT", "4000")
	os.Setenv("BASE_URL", "https://wapi.example.com/")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("http://gateway.local:3000", cfg.GatewayURL)
	s.Equal("4000", cfg.Port)
	s.Equal(":4000", cfg.Addr())
	// Trailing slash is trimmed
	s.Equal("https://wapi.example.com", cfg.BaseURL)
	s.Equal(DefaultWebhookURL, cfg.WebhookURL)
}

// TestLoad_Defaults tests optional values falling back to defaults.
func (s *ConfigSuite) TestLoad_Defaults() {
	s.setRequired()

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(DefaultPort, cfg.Port)
	s.Equal("http://localhost:"+DefaultPort, cfg.BaseURL)
}

// TestLoad_MissingRequired tests fail-fast on missing required settings.
func (s *ConfigSuite) TestLoad_MissingRequired() {
	s.setRequired()
	os.Unsetenv("TOKEN_SECRET")
	os.Unsetenv("DATABASE_DSN")

	_, err := Load()
	s.Require().Error(err)
	s.Contains(err.Error(), "TOKEN_SECRET")
	s.Contains(err.Error(), "DATABASE_DSN")
}

// TestLoad_TrimsGatewaySlash tests base URL normalization.
func (s *ConfigSuite) TestLoad_TrimsGatewaySlash() {
	s.setRequired()
	os.Setenv("WAHA_API_URL", "http://gateway.local:3000/")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("http://gateway.local:3000", cfg.GatewayURL)
}
