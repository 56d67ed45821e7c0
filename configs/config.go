package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type OAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type Config struct {
	Port        string
	PostgresURI string

	TickInterval        time.Duration
	MaxAttempts         int
	PublishTimeout      time.Duration
	DispatchConcurrency int
	StaleAfter          time.Duration

	// Platform name -> delivery endpoint, e.g.
	// WEBHOOK_PLATFORMS="facebook=https://hooks.example.com/fb,mastodon=https://hooks.example.com/msto"
	WebhookPlatforms map[string]string
	OAuth            OAuth

	R2 R2
}

func LoadConfig() *Config {
	return &Config{
		Port:                getEnv("PORT", "3000"),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		TickInterval:        getEnvDuration("TICK_INTERVAL", time.Minute),
		MaxAttempts:         getEnvInt("MAX_ATTEMPTS", 3),
		PublishTimeout:      getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 10),
		StaleAfter:          getEnvDuration("STALE_AFTER", 5*time.Minute),
		WebhookPlatforms:    parsePlatforms(getEnv("WEBHOOK_PLATFORMS", "")),
		OAuth: OAuth{
			TokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
			ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func parsePlatforms(raw string) map[string]string {
	platforms := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, endpoint, ok := strings.Cut(pair, "=")
		if !ok || name == "" || endpoint == "" {
			slog.Warn("skipping malformed platform entry", "entry", pair)
			continue
		}
		platforms[strings.TrimSpace(name)] = strings.TrimSpace(endpoint)
	}
	return platforms
}
