package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerURL         string
	DBFile            string
	ReconnectAttempts int
	DialTimeout       time.Duration
	ReconnectDelay    time.Duration
	JoinGrace         time.Duration
	HistoryTimeout    time.Duration
	VAPIDPublicKey    string
	VAPIDPrivateKey   string
	NotifySubscriber  string
}

func Load() (*Config, error) {
	attempts, err := strconv.Atoi(getEnv("RECONNECT_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("RECONNECT_ATTEMPTS: %w", err)
	}

	dialTimeout, err := time.ParseDuration(getEnv("DIAL_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("DIAL_TIMEOUT: %w", err)
	}

	reconnectDelay, err := time.ParseDuration(getEnv("RECONNECT_DELAY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("RECONNECT_DELAY: %w", err)
	}

	joinGrace, err := time.ParseDuration(getEnv("JOIN_GRACE", "3s"))
	if err != nil {
		return nil, fmt.Errorf("JOIN_GRACE: %w", err)
	}

	historyTimeout, err := time.ParseDuration(getEnv("HISTORY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("HISTORY_TIMEOUT: %w", err)
	}

	cfg := &Config{
		ServerURL:         os.Getenv("SERVER_URL"),
		DBFile:            getEnv("GOVORILKA_DB", "govorilka.db"),
		ReconnectAttempts: attempts,
		DialTimeout:       dialTimeout,
		ReconnectDelay:    reconnectDelay,
		JoinGrace:         joinGrace,
		HistoryTimeout:    historyTimeout,
		VAPIDPublicKey:    os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:   os.Getenv("VAPID_PRIVATE_KEY"),
		NotifySubscriber:  getEnv("NOTIFY_SUBSCRIBER", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}

	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("RECONNECT_ATTEMPTS must not be negative")
	}

	if c.DialTimeout <= 0 || c.ReconnectDelay <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT and RECONNECT_DELAY must be greater than 0")
	}

	// WebPush needs both halves of the keypair.
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
