package config

import (
	"testing"
	"time"
)

func TestLoad_ReportsMissingRequired(t *testing.T) {
	// Ensure a clean env by not setting anything and calling validation directly.
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "production", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "campaign_engine", SSLMode: ""},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Twilio:   TwilioConfig{AccountSID: "AC123", AuthToken: "tok"},
		Campaign: validCampaignConfig(),
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalAcceptsDisableSSLMode(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "campaign_engine", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: 24 * time.Hour},
		Twilio:   TwilioConfig{AccountSID: "AC123", AuthToken: "tok"},
		Campaign: validCampaignConfig(),
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode to stay disable, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RequiresTelephonyProvider(t *testing.T) {
	c := Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "campaign_engine", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Campaign: validCampaignConfig(),
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when neither Twilio nor Plivo is configured")
	}
}

func validCampaignConfig() CampaignConfig {
	return CampaignConfig{
		GlobalMaxCalls:                   100,
		DefaultClientMaxConcurrentCalls:  10,
		MaxCallsPerMinute:                60,
		PublicWebhookBaseURL:             "https://example.test/webhooks",
	}
}
