package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/email"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/whatsapp"
)

type Config struct {
	Env         string
	Port        string
	DatabaseURL string

	// WhatsApp
	WhatsAppProvider   string
	WhatsAppStoreURL   string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	TwilioWebhookURL   string
	CloudPhoneID       string
	CloudAccessToken   string
	CloudAPIVersion    string
	GreenAPIInstanceID string
	GreenAPIToken      string
	GreenAPIURL        string

	// Email
	EmailProvider string
	EmailFrom     string
	EmailFromName string
	ResendAPIKey  string
	BrevoAPIKey   string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPSSL       bool

	// Infra
	RabbitMQURL  string
	TriggerQueue string
	RedisURL     string
	SentryDSN    string
	CronSecret   string

	// Sweep
	ResumeSchedule    string
	ResumeBatchSize   int
	StallTimeout      time.Duration
	CampaignBatchSize int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		WhatsAppProvider:   getEnv("WHATSAPP_PROVIDER", "twilio"),
		WhatsAppStoreURL:   os.Getenv("WHATSAPP_STORE_URL"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: os.Getenv("TWILIO_WHATSAPP_FROM"),
		TwilioWebhookURL:   os.Getenv("TWILIO_WEBHOOK_URL"),
		CloudPhoneID:       os.Getenv("WHATSAPP_CLOUD_PHONE_ID"),
		CloudAccessToken:   os.Getenv("WHATSAPP_CLOUD_ACCESS_TOKEN"),
		CloudAPIVersion:    os.Getenv("WHATSAPP_CLOUD_API_VERSION"),
		GreenAPIInstanceID: os.Getenv("GREEN_API_INSTANCE_ID"),
		GreenAPIToken:      os.Getenv("GREEN_API_TOKEN"),
		GreenAPIURL:        os.Getenv("GREEN_API_URL"),

		EmailProvider: os.Getenv("EMAIL_PROVIDER"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		EmailFromName: os.Getenv("EMAIL_FROM_NAME"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		BrevoAPIKey:   os.Getenv("BREVO_API_KEY"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPSSL:       getEnvBool("SMTP_SSL", false),

		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		TriggerQueue: getEnv("TRIGGER_QUEUE", "marketing.triggers"),
		RedisURL:     os.Getenv("REDIS_URL"),
		SentryDSN:    os.Getenv("SENTRY_DSN"),
		CronSecret:   os.Getenv("CRON_SECRET"),

		ResumeSchedule:    getEnv("RESUME_SCHEDULE", "0 * * * * *"),
		ResumeBatchSize:   getEnvInt("RESUME_BATCH_SIZE", 50),
		StallTimeout:      time.Duration(getEnvInt("STALL_TIMEOUT_MINUTES", 15)) * time.Minute,
		CampaignBatchSize: getEnvInt("CAMPAIGN_BATCH_SIZE", 5),
	}

	if cfg.WhatsAppStoreURL == "" && cfg.WhatsAppProvider == string(whatsapp.ProviderWhatsmeow) {
		// Default to main database if not specified
		cfg.WhatsAppStoreURL = cfg.DatabaseURL
	}

	return cfg
}

// WhatsApp returns the gateway settings for whatsapp.NewProvider
func (c *Config) WhatsApp() whatsapp.ProviderConfig {
	return whatsapp.ProviderConfig{
		Type:               whatsapp.ProviderType(c.WhatsAppProvider),
		TwilioAccountSID:   c.TwilioAccountSID,
		TwilioAuthToken:    c.TwilioAuthToken,
		TwilioFrom:         c.TwilioWhatsAppFrom,
		CloudPhoneID:       c.CloudPhoneID,
		CloudAccessToken:   c.CloudAccessToken,
		CloudAPIVersion:    c.CloudAPIVersion,
		GreenAPIInstanceID: c.GreenAPIInstanceID,
		GreenAPIToken:      c.GreenAPIToken,
		GreenAPIURL:        c.GreenAPIURL,
		StoreURL:           c.WhatsAppStoreURL,
	}
}

// Email returns the email gateway settings; ok is false when no provider is
// configured
func (c *Config) Email() (email.Config, bool) {
	if c.EmailProvider == "" {
		return email.Config{}, false
	}

	apiKey := c.ResendAPIKey
	if c.EmailProvider == "brevo" {
		apiKey = c.BrevoAPIKey
	}
	return email.Config{
		Provider:     c.EmailProvider,
		APIKey:       apiKey,
		FromEmail:    c.EmailFrom,
		FromName:     c.EmailFromName,
		SMTPHost:     c.SMTPHost,
		SMTPPort:     c.SMTPPort,
		SMTPUsername: c.SMTPUsername,
		SMTPPassword: c.SMTPPassword,
		SMTPSSL:      c.SMTPSSL,
	}, true
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("⚠️ Invalid integer, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
