package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// MaxMessageLen is the upper bound on message content length in runes.
const MaxMessageLen = 500

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	// EmailDomain restricts registration to campus addresses,
	// e.g. "uni.edu" accepts only "*@uni.edu".
	EmailDomain string
	SMTPAddr    string
	SMTPFrom    string
	ClientURL   string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret, emailDomain string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if emailDomain == "" {
		return nil, fmt.Errorf("email domain cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		EmailDomain:    strings.TrimPrefix(strings.ToLower(emailDomain), "@"),
		SMTPAddr:       Getenv("SMTP_ADDR", "localhost:25"),
		SMTPFrom:       Getenv("SMTP_FROM", "noreply@campuslist.local"),
		ClientURL:      Getenv("CLIENT_URL", "http://localhost:3000"),
	}, nil
}

// Getenv returns the value of key or fallback when unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
