// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the extraction oracle,
// email delivery, mailbox monitoring, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/procurehub/go-procurement-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-procurement-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AIConfig defines the extraction oracle endpoint.
type AIConfig struct {
	BaseURL string        // AI_BASE_URL (OpenAI-compatible, no trailing slash)
	APIKey  string        // AI_API_KEY
	Model   string        // AI_MODEL
	Timeout time.Duration // AI_TIMEOUT
}

// MailConfig defines outbound email delivery.
type MailConfig struct {
	Provider  string // MAIL_PROVIDER: smtp|resend
	FromEmail string // FROM_EMAIL
	FromName  string // FROM_NAME

	SMTPHost string // SMTP_HOST
	SMTPPort string // SMTP_PORT
	SMTPUser string // SMTP_USER
	SMTPPass string // SMTP_PASS

	ResendAPIKey string // RESEND_API_KEY
}

// MailboxConfig defines the monitored inbox and its push subscription.
// Monitoring is optional: with incomplete credentials the push listener is
// simply not started.
type MailboxConfig struct {
	Address      string // MAILBOX_ADDRESS, the account replies arrive at
	ClientID     string // GMAIL_CLIENT_ID
	ClientSecret string // GMAIL_CLIENT_SECRET
	RefreshToken string // GMAIL_REFRESH_TOKEN
	PubSubTopic  string // GMAIL_PUBSUB_TOPIC
}

// Enabled reports whether enough is configured to monitor the inbox.
func (m MailboxConfig) Enabled() bool {
	return m.ClientID != "" && m.ClientSecret != "" && m.RefreshToken != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	// Port is just the number. There is deliberately no write timeout:
	// the SSE endpoints hold responses open indefinitely.
	Port              string
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath    string // SQLite path
	RedisAddr string // optional; empty disables the fanout replay log

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Domain integrations
	AI      AIConfig
	Mail    MailConfig
	Mailbox MailboxConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:    getenv("DB_PATH", "procurement.db"),
		RedisAddr: getenv("REDIS_ADDR", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Domain integrations
		AI: AIConfig{
			BaseURL: strings.TrimRight(getenv("AI_BASE_URL", "https://api.openai.com/v1"), "/"),
			APIKey:  getenv("AI_API_KEY", ""),
			Model:   getenv("AI_MODEL", "gpt-3.5-turbo"),
			Timeout: getdur("AI_TIMEOUT", 60*time.Second),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(getenv("MAIL_PROVIDER", "smtp")),
			FromEmail:    getenv("FROM_EMAIL", "noreply@procurement.com"),
			FromName:     getenv("FROM_NAME", "Procurement Team"),
			SMTPHost:     getenv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getenv("SMTP_PORT", "587"),
			SMTPUser:     getenv("SMTP_USER", ""),
			SMTPPass:     getenv("SMTP_PASS", ""),
			ResendAPIKey: getenv("RESEND_API_KEY", ""),
		},
		Mailbox: MailboxConfig{
			Address:      getenv("MAILBOX_ADDRESS", ""),
			ClientID:     getenv("GMAIL_CLIENT_ID", ""),
			ClientSecret: getenv("GMAIL_CLIENT_SECRET", ""),
			RefreshToken: getenv("GMAIL_REFRESH_TOKEN", ""),
			PubSubTopic:  getenv("GMAIL_PUBSUB_TOPIC", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-procurement-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Mailbox.Address = sysutil.FirstNonEmpty(cfg.Mailbox.Address, cfg.Mail.SMTPUser)

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	switch cfg.Mail.Provider {
	case "smtp", "resend":
	default:
		return cfg, errors.New("MAIL_PROVIDER must be one of: smtp, resend")
	}
	if strings.TrimSpace(cfg.AI.BaseURL) == "" {
		return cfg, errors.New("AI_BASE_URL must not be empty")
	}
	if cfg.AI.Timeout <= 0 {
		return cfg, errors.New("AI_TIMEOUT must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
