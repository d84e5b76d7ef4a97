package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// ----------------------------
	// Job executor
	// ----------------------------
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"60s"`
	JobBatchSize  int           `envconfig:"JOB_BATCH_SIZE" default:"50"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"5m"`
	SendRateLimit int           `envconfig:"SEND_RATE_LIMIT" default:"10"`

	// ----------------------------
	// Email channel (SMTP)
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@leadg.app"`

	// ----------------------------
	// Chat channel (webhook gateway)
	// ----------------------------
	ChatWebhookURL string        `envconfig:"CHAT_WEBHOOK_URL" default:"http://localhost:9100/send"`
	ChatTimeout    time.Duration `envconfig:"CHAT_TIMEOUT" default:"10s"`

	// ----------------------------
	// Activity events (RabbitMQ, optional)
	// ----------------------------
	AMQPURL       string `envconfig:"AMQP_URL" default:""`
	ActivityQueue string `envconfig:"ACTIVITY_QUEUE" default:"campaign_activity"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
