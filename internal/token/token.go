// Package token はステートレスなセッショントークン（HS256 JWT）の発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength はHMAC署名シークレットの最小バイト長。
const MinSecretLength = 32

// ErrInvalidToken はトークンの形式不正、署名不一致、発行者不一致、期限切れを表す。
var ErrInvalidToken = errors.New("invalid token")

// Config はトークンサービスの設定。
// シークレットは必須で、既定値へのフォールバックはない。
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Identity は検証済みトークンから得られた認証済みユーザーを表す。
// フィールドは非公開で、Service.Verifyの成功時にのみ生成される。
type Identity struct {
	id       string
	email    string
	issuedAt time.Time
}

// ID はユーザーIDを返す。
func (i Identity) ID() string { return i.id }

// Email はトークン発行時のメールアドレスを返す。
func (i Identity) Email() string { return i.email }

// IssuedAt はトークンの発行時刻を返す。
func (i Identity) IssuedAt() time.Time { return i.issuedAt }

// IsZero はIdentityが未設定（ゼロ値）かどうかを返す。
func (i Identity) IsZero() bool { return i.id == "" }

// sessionClaims はJWTのクレーム。subにユーザーIDを格納する。
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Service はセッショントークンの発行と検証を行う。
// 失効リストは持たず、検証は署名の再計算のみで完結する。
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewService はServiceを生成する。
// シークレットが未設定または短すぎる場合はエラーを返す。
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Service{
		secret: secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

// Issue はユーザーIDとメールアドレスを含む署名済みトークンを発行する。
func (s *Service) Issue(userID, email string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名、発行者、有効期限を検証し、認証済みIdentityを返す。
// 検証に失敗した場合はErrInvalidTokenをラップしたエラーを返す。
func (s *Service) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return Identity{
		id:       claims.Subject,
		email:    claims.Email,
		issuedAt: issuedAt,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (s *Service) TTL() time.Duration {
	return s.ttl
}
