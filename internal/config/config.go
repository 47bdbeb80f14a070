package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Missing credentials are the only fatal configuration problems. Their text
// is shown to the operator verbatim.
var (
	ErrMissingAPIKey      = errors.New("Manjka GROQ_API_KEY. Dodaj ga v .env (lokalno) ali v secrets.yaml (v oblaku).")
	ErrMissingYandexToken = errors.New("Manjka YANDEX_OAUTH_TOKEN. Dodaj ga v .env (lokalno) ali v secrets.yaml (v oblaku).")
)

type Config struct {
	// LLM settings
	APIKey           string  `env:"GROQ_API_KEY"`
	Model            string  `env:"MODEL"`
	LLMProvider      string  `env:"LLM_PROVIDER" envDefault:"openai"`
	BaseURL          string  `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Temperature      float32 `env:"LLM_TEMPERATURE" envDefault:"0.4"`
	YandexOAuthToken string  `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string  `env:"YANDEX_FOLDER_ID"`

	// Topic
	BotProfile    string `env:"BOT_PROFILE" envDefault:"support"`
	TopicFilePath string `env:"TOPIC_FILE_PATH"`

	// Front ends
	HTTPAddr         string  `env:"HTTP_ADDR" envDefault:":8501"`
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`

	// Web sessions idle longer than SessionIdleTTL are dropped by a job on
	// SessionSweepCron. Zero keeps them until reset.
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweepCron string        `env:"SESSION_SWEEP_CRON" envDefault:"@every 1m"`

	// Journal
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"data/turns.jsonl"`
	ReportCron  string `env:"REPORT_CRON" envDefault:"0 21 * * *"`

	SecretsFilePath string `env:"SECRETS_FILE_PATH" envDefault:".secrets/secrets.yaml"`
}

// Load resolves the configuration. Values from the secrets file take
// precedence over the process environment; a missing secrets file or .env
// file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	environ := environMap(os.Environ())
	secretsPath := environ["SECRETS_FILE_PATH"]
	if secretsPath == "" {
		secretsPath = ".secrets/secrets.yaml"
	}
	secrets, err := LoadSecrets(secretsPath)
	if err != nil {
		return nil, err
	}
	return Parse(Merge(secrets, environ))
}

// Parse builds a Config from an explicit variable map and validates it.
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if strings.EqualFold(cfg.LLMProvider, "yandex") {
		if strings.TrimSpace(cfg.YandexOAuthToken) == "" {
			return nil, ErrMissingYandexToken
		}
		return cfg, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return cfg, nil
}

// Merge overlays store on top of environ. Neither input is modified.
func Merge(store, environ map[string]string) map[string]string {
	out := make(map[string]string, len(store)+len(environ))
	for k, v := range environ {
		out[k] = v
	}
	for k, v := range store {
		out[k] = v
	}
	return out
}

func environMap(kv []string) map[string]string {
	out := make(map[string]string, len(kv))
	for _, e := range kv {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
