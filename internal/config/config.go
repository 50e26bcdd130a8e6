package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Email provider
	// ----------------------------
	EmailProvider string `envconfig:"EMAIL_PROVIDER" default:"mailgun"` // "mailgun" or "smtp"
	EmailFrom     string `envconfig:"EMAIL_FROM" default:"Plata <plataimobiliaria@gmail.com>"`

	MailgunDomain string `envconfig:"MAILGUN_DOMAIN" default:""`
	MailgunAPIKey string `envconfig:"MAILGUN_API_KEY" default:""`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// WhatsApp (Twilio)
	// ----------------------------
	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID" default:""`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN" default:""`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM" default:"whatsapp:+14155238886"`

	// ----------------------------
	// Dispatch
	// ----------------------------
	ConcurrencyLimit   int           `envconfig:"CONCURRENCY_LIMIT" default:"10"`
	RetryAttempts      int           `envconfig:"RETRY_ATTEMPTS" default:"5"`
	RetryInitialDelay  time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"1s"`
	RetryBackoffFactor float64       `envconfig:"RETRY_BACKOFF_FACTOR" default:"2.0"`
	RetryMaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"60s"`

	// ----------------------------
	// Sweeps
	// ----------------------------
	SweepInterval     time.Duration `envconfig:"SWEEP_INTERVAL" default:"24h"`
	SweepSendRate     float64       `envconfig:"SWEEP_SEND_RATE" default:"1"` // whatsapp prompts per second
	ThrottleRetention time.Duration `envconfig:"THROTTLE_RETENTION" default:"720h"`

	// ----------------------------
	// Links embedded in messages
	// ----------------------------
	SiteBaseURL string `envconfig:"SITE_BASE_URL" default:"https://plataimobiliaria.com"`
	APIBaseURL  string `envconfig:"API_BASE_URL" default:"https://api.plataimobiliaria.com"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"3005"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
