package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

type ServerConfig struct {
	HTTPAddr string
}

func init() {
	// best effort: a missing .env is fine, env vars still apply
	_ = godotenv.Load()
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("BOOKHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("BOOKHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "bookhub"
	}

	duration := 24 * time.Hour
	if ttl := os.Getenv("BOOKHUB_JWT_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			duration = time.Duration(hours) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: duration,
	}
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("BOOKHUB_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return ServerConfig{HTTPAddr: addr}
}
