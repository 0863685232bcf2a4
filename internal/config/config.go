package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port int `env:"GLIMPSE_PORT" envDefault:"8484"`

	// Push channel
	NatsURL   string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	SessionID string `env:"GLIMPSE_SESSION_ID"`

	// Remote agent
	AgentURL string `env:"AGENT_URL" envDefault:"http://localhost:4111/api/agents/screenAgent/generate"`

	// Screenshot storage
	S3Bucket     string        `env:"S3_BUCKET"`
	S3Region     string        `env:"AWS_REGION" envDefault:"us-east-1"`
	S3KeyPrefix  string        `env:"S3_KEY_PREFIX" envDefault:"screenshots"`
	UploadURLTTL time.Duration `env:"UPLOAD_URL_TTL" envDefault:"15m"`

	// Local capture scratch directory. Defaults to the OS temp dir.
	CaptureDir string `env:"CAPTURE_DIR"`

	// Notes database
	NotesDBPath string `env:"NOTES_DB_PATH" envDefault:"notes.db"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional Slack forwarding for transient error notices
	SlackBotToken      string `env:"SLACK_BOT_TOKEN"`
	SlackNoticeChannel string `env:"SLACK_NOTICE_CHANNEL"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.CaptureDir == "" {
		cfg.CaptureDir = os.TempDir()
	}
	return cfg, nil
}
