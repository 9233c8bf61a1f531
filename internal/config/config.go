package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

/*
Config holds all configuration required by the API process.
All values MUST come from environment variables.
No business logic should depend on raw env vars.
*/
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Twilio   TwilioConfig
	Plivo    PlivoConfig
	Campaign CampaignConfig
}

/* ===================== APP ===================== */

type AppConfig struct {
	Env           string
	Port          int
	Maintenance   bool // UI read-only / banner
	EmergencyStop bool // HARD STOP all calls
}

/* ===================== DATABASE ===================== */

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string // disable, require, verify-ca, verify-full
}

/* ===================== REDIS ===================== */

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	UseTLS   bool
}

/* ===================== AUTH ===================== */

type AuthConfig struct {
	JWTSecret        string
	JWTIssuer        string
	JWTAudience      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

/* ===================== TWILIO ===================== */

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	WebhookSecret string
}

/* ===================== PLIVO ===================== */

type PlivoConfig struct {
	AuthID    string
	AuthToken string
}

/* ===================== CAMPAIGN ENGINE ===================== */

// CampaignConfig holds the tunables of the dial loop, admission control,
// heartbeat/orphan recovery and billing aggregation windows.
type CampaignConfig struct {
	GlobalMaxCalls                   int
	DefaultClientMaxConcurrentCalls  int
	MaxCallsPerMinute                int
	RateLimitWindow                  time.Duration
	AdmissionTimeout                 time.Duration
	HeartbeatInterval                time.Duration
	OrphanThreshold                  time.Duration
	ShutdownGrace                    time.Duration
	BotWarmupTimeout                 time.Duration
	BotWarmupRetries                 int
	SubsequentCallWait               time.Duration
	EstimatedCallDurationSeconds     int
	IncomingAggregationTime          time.Duration
	SchedulerPollInterval            time.Duration
	PublicWebhookBaseURL             string
}

/* ===================== LOAD ===================== */

func Load() (Config, error) {
	var parseErrs []error
	var err error

	c := Config{}

	/* ---- APP ---- */
	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, err = mustInt("APP_PORT")
	parseErrs = append(parseErrs, err)

	c.App.Maintenance = strings.ToLower(os.Getenv("APP_MAINTENANCE")) == "true"
	c.App.EmergencyStop = strings.ToLower(os.Getenv("APP_EMERGENCY_STOP")) == "true"

	/* ---- DB ---- */
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, err = mustInt("DB_PORT")
	parseErrs = append(parseErrs, err)

	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	/* ---- REDIS ---- */
	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, err = mustInt("REDIS_PORT")
	parseErrs = append(parseErrs, err)

	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.UseTLS = strings.ToLower(os.Getenv("REDIS_TLS")) == "true"

	/* ---- AUTH ---- */
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))

	c.Auth.AccessTokenTTL, err = mustDuration("JWT_ACCESS_TTL")
	parseErrs = append(parseErrs, err)

	c.Auth.RefreshTokenTTL, err = mustDuration("JWT_REFRESH_TTL")
	parseErrs = append(parseErrs, err)

	/* ---- TWILIO ---- */
	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.WebhookSecret = os.Getenv("TWILIO_WEBHOOK_SECRET")

	/* ---- PLIVO ---- */
	c.Plivo.AuthID = strings.TrimSpace(os.Getenv("PLIVO_AUTH_ID"))
	c.Plivo.AuthToken = os.Getenv("PLIVO_AUTH_TOKEN")

	/* ---- CAMPAIGN ---- */
	c.Campaign.GlobalMaxCalls, err = mustInt("GLOBAL_MAX_CALLS")
	parseErrs = append(parseErrs, err)

	c.Campaign.DefaultClientMaxConcurrentCalls, err = optionalInt("DEFAULT_CLIENT_MAX_CONCURRENT_CALLS", 10)
	parseErrs = append(parseErrs, err)

	c.Campaign.MaxCallsPerMinute, err = mustInt("MAX_CALLS_PER_MINUTE")
	parseErrs = append(parseErrs, err)

	c.Campaign.RateLimitWindow, err = optionalDuration("RATE_LIMIT_WINDOW", 60*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.AdmissionTimeout, err = optionalDuration("ADMISSION_TIMEOUT", 60*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.HeartbeatInterval, err = optionalDuration("HEARTBEAT_INTERVAL", 30*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.OrphanThreshold, err = optionalDuration("ORPHAN_THRESHOLD", 120*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.ShutdownGrace, err = optionalDuration("SHUTDOWN_GRACE", 10*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.BotWarmupTimeout, err = optionalDuration("BOT_WARMUP_TIMEOUT", 120*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.BotWarmupRetries, err = optionalInt("BOT_WARMUP_RETRIES", 3)
	parseErrs = append(parseErrs, err)

	c.Campaign.SubsequentCallWait, err = optionalDuration("SUBSEQUENT_CALL_WAIT", 1*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.EstimatedCallDurationSeconds, err = optionalInt("ESTIMATED_CALL_DURATION", 30)
	parseErrs = append(parseErrs, err)

	c.Campaign.IncomingAggregationTime, err = optionalDuration("INCOMING_AGGREGATION_TIME", time.Hour)
	parseErrs = append(parseErrs, err)

	c.Campaign.SchedulerPollInterval, err = optionalDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second)
	parseErrs = append(parseErrs, err)

	c.Campaign.PublicWebhookBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_WEBHOOK_BASE_URL"))

	/* ---- APPLY DEFAULTS (NO SIDE EFFECTS IN VALIDATE) ---- */
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

/* ===================== VALIDATION ===================== */

func (c Config) Validate() error {
	var errs []error

	/* ---- APP ---- */
	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	}
	if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be local, dev, staging, or production"))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be valid"))
	}

	/* ---- DB ---- */
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.IsProduction() && c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE required in production"))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("invalid DB_SSLMODE"))
	}

	/* ---- REDIS ---- */
	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, errors.New("REDIS_PORT is required"))
	}

	/* ---- AUTH ---- */
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	/* ---- TWILIO ---- */
	if c.Twilio.AccountSID != "" || c.Twilio.AuthToken != "" {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New(
				"TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must both be set",
			))
		}
	}

	/* ---- PLIVO ---- */
	if c.Plivo.AuthID != "" || c.Plivo.AuthToken != "" {
		if c.Plivo.AuthID == "" || c.Plivo.AuthToken == "" {
			errs = append(errs, errors.New(
				"PLIVO_AUTH_ID and PLIVO_AUTH_TOKEN must both be set",
			))
		}
	}

	if !c.HasTelephonyProvider() {
		errs = append(errs, errors.New("at least one of Twilio or Plivo credentials must be configured"))
	}

	/* ---- CAMPAIGN ---- */
	if c.Campaign.GlobalMaxCalls <= 0 {
		errs = append(errs, errors.New("GLOBAL_MAX_CALLS must be > 0"))
	}
	if c.Campaign.MaxCallsPerMinute <= 0 {
		errs = append(errs, errors.New("MAX_CALLS_PER_MINUTE must be > 0"))
	}
	if c.Campaign.DefaultClientMaxConcurrentCalls <= 0 {
		errs = append(errs, errors.New("DEFAULT_CLIENT_MAX_CONCURRENT_CALLS must be > 0"))
	}
	if c.Campaign.PublicWebhookBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_WEBHOOK_BASE_URL is required"))
	}

	return joinErrors(errs)
}

/* ===================== HELPERS ===================== */

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// HasTelephonyProvider reports whether at least one provider's credentials
// are configured. The campaign auto-selection (SPEC_FULL §3) prefers Twilio
// when both are present.
func (c Config) HasTelephonyProvider() bool {
	return c.Twilio.AccountSID != "" || c.Plivo.AuthID != ""
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	return strconv.Atoi(v)
}

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer", key)
	}
	return n, nil
}

func mustDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be valid duration like 15m", key)
	}
	return d, nil
}

func optionalDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration like 30s", key)
	}
	return d, nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
