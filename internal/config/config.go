package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Bible     BibleConfig
	OpenAI    OpenAIConfig
	Twilio    TwilioConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	// URL is either "sqlite:<path>" (default) or a postgres:// URL.
	URL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type BibleConfig struct {
	APIKey  string
	BaseURL string
	BibleID string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Doctrine biases generated answers toward a theological viewpoint.
	Doctrine string
}

type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	FromNumber       string
	DefaultRecipient string
	BaseURL          string
	ContentMax       int
}

const defaultDoctrine = "Protestant Christian perspective with emphasis on grace, faith, and scripture"

func LoadAll() (*Config, error) {
	var le loadErrors

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "sqlite:conversations.db"),
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(le.getInt("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Bible: BibleConfig{
			APIKey:  os.Getenv("BIBLE_API_KEY"),
			BaseURL: getEnv("BIBLE_API_URL", "https://api.scripture.api.bible/v1"),
			BibleID: getEnv("BIBLE_ID", "de4e12af7f28f599-02"), // KJV
		},
		OpenAI: OpenAIConfig{
			APIKey:   le.require("OPENAI_API_KEY"),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
			Model:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Doctrine: getEnv("CHURCH_DOCTRINE", defaultDoctrine),
		},
		Twilio: TwilioConfig{
			AccountSID:       le.require("TWILIO_ACCOUNT_SID"),
			AuthToken:        le.require("TWILIO_AUTH_TOKEN"),
			FromNumber:       le.require("TWILIO_PHONE_NUMBER"),
			DefaultRecipient: os.Getenv("RECIPIENT_PHONE_NUMBER"),
			BaseURL:          getEnv("TWILIO_API_URL", "https://api.twilio.com"),
			ContentMax:       le.getInt("SMS_CONTENT_MAX", 1600),
		},
		Redis: loadRedisConfig(&le),
	}

	if cfg.Scheduler.Interval <= 0 {
		le.addf("SCHED_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Twilio.ContentMax <= 0 {
		le.addf("SMS_CONTENT_MAX must be > 0")
	}

	if err := le.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Redis is optional: without REDIS_ADDR the state cache runs store-only.
func loadRedisConfig(le *loadErrors) RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       le.getInt("REDIS_DB", 0),
		TTL:      time.Duration(le.getInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

type loadErrors struct {
	problems []string
}

func (le *loadErrors) require(key string) string {
	val := os.Getenv(key)
	if val == "" {
		le.addf("missing required env var: %s", key)
	}
	return val
}

func (le *loadErrors) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		le.addf("invalid int for env %s: %s", key, v)
		return def
	}
	return i
}

func (le *loadErrors) addf(format string, args ...any) {
	le.problems = append(le.problems, fmt.Sprintf(format, args...))
}

func (le *loadErrors) err() error {
	if len(le.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", le.problems[0])
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
