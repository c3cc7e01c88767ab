package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	ClassifierModel string
	ResponderModel  string
	ConfigFile      string
}

func Load() Config {
	return Config{
		Port:            envInt("RECALL_PORT", 8760),
		NatsURL:         envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		ClassifierModel: envStr("RECALL_CLASSIFIER_MODEL", "claude-3-5-haiku-20241022"),
		ResponderModel:  envStr("RECALL_RESPONDER_MODEL", "claude-sonnet-4-20250514"),
		ConfigFile:      envStr("RECALL_CONFIG_FILE", "config.yaml"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
