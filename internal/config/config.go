// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Token
	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"ufs4life-marketplace"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Registration
	AllowedEmailDomain string `env:"ALLOWED_EMAIL_DOMAIN" envDefault:"ufs4life.ac.za"`
	BcryptCost         int    `env:"BCRYPT_COST" envDefault:"10"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH" envDefault:"10"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:8081"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// minSecretLength はJWT署名シークレットの最小バイト長。
const minSecretLength = 32

// bcryptのコスト範囲（golang.org/x/crypto/bcryptのMinCost/MaxCost）。
const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。JWT_SECRETにフォールバック値はない。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}

	cfg.AllowedEmailDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.AllowedEmailDomain), "@"))
	if cfg.AllowedEmailDomain == "" {
		return nil, fmt.Errorf("ALLOWED_EMAIL_DOMAIN must not be empty")
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive: %s", cfg.TokenTTL)
	}

	if cfg.BcryptCost < minBcryptCost || cfg.BcryptCost > maxBcryptCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d: %d", minBcryptCost, maxBcryptCost, cfg.BcryptCost)
	}

	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitAuth <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_GENERAL and RATE_LIMIT_AUTH must be positive")
	}

	return cfg, nil
}
