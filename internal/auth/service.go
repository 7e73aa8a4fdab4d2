// Package auth は大学ドメイン限定のユーザー登録・ログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ufs4life/marketplace/internal/metrics"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/repository"
	"github.com/ufs4life/marketplace/internal/token"
	"golang.org/x/crypto/bcrypt"
)

// maxUsernameLength はユーザー名の最大文字数。
const maxUsernameLength = 50

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト長。
const maxPasswordBytes = 72

// TokenIssuer はセッショントークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// TextSanitizer はユーザー名からHTMLを除去するインターフェース。
type TextSanitizer interface {
	PlainText(s string) string
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AllowedDomain string // 例: "ufs4life.ac.za"（@なし、小文字）
	BcryptCost    int
}

// Result は登録・ログイン成功時の結果。
type Result struct {
	User  *model.User
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	tokens    TokenIssuer
	sanitizer TextSanitizer
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	tokens TokenIssuer,
	sanitizer TextSanitizer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	config.AllowedDomain = strings.ToLower(strings.TrimPrefix(config.AllowedDomain, "@"))

	return &Service{
		userRepo:  userRepo,
		tokens:    tokens,
		sanitizer: sanitizer,
		metrics:   collector,
		config:    config,
		now:       time.Now,
	}
}

// Register は大学ドメインのメールアドレスでユーザーを登録し、トークンを発行する。
// メールアドレスは小文字に正規化して保存する。
func (s *Service) Register(ctx context.Context, email, username, password string) (*Result, error) {
	res, err := s.register(ctx, email, username, password)
	s.recordAttempt(metrics.AuthKindRegister, err)
	return res, err
}

func (s *Service) register(ctx context.Context, email, username, password string) (*Result, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	username = s.sanitizer.PlainText(username)
	if username == "" {
		return nil, model.NewValidationError("ユーザー名は必須です")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, model.NewValidationError(fmt.Sprintf("ユーザー名は%d文字以内で入力してください", maxUsernameLength))
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前確認と挿入の間に同じメールアドレスが登録された場合は一意制約で検出する
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tok, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &Result{User: user, Token: tok}, nil
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
// ユーザーが存在しない場合とパスワード不一致は区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	res, err := s.login(ctx, email, password)
	s.recordAttempt(metrics.AuthKindLogin, err)
	return res, err
}

func (s *Service) login(ctx context.Context, email, password string) (*Result, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	tok, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &Result{User: user, Token: tok}, nil
}

// Me は認証済みユーザー自身のレコードを返す。
// トークン発行後にユーザーが削除されていた場合はUSER_NOT_FOUNDを返す。
func (s *Service) Me(ctx context.Context, identity token.Identity) (*model.User, error) {
	if identity.IsZero() {
		return nil, model.NewInvalidTokenError()
	}

	user, err := s.userRepo.FindByID(ctx, identity.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// normalizeEmail はメールアドレスを小文字化し、形式と大学ドメインを検証する。
func (s *Service) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.NewValidationError("メールアドレスは必須です")
	}
	if !strings.HasSuffix(email, "@"+s.config.AllowedDomain) {
		return "", model.NewInvalidDomainError(s.config.AllowedDomain)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || strings.HasPrefix(email, "@") {
		return "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	return email, nil
}

// validatePassword はパスワードの長さを検証する。
func validatePassword(password string) error {
	if password == "" {
		return model.NewValidationError("パスワードは必須です")
	}
	if len(password) > maxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("パスワードは%dバイト以内で入力してください", maxPasswordBytes))
	}
	return nil
}

func (s *Service) recordAttempt(kind string, err error) {
	if err != nil {
		s.metrics.RecordAuthAttempt(kind, metrics.OutcomeFailure)
		return
	}
	s.metrics.RecordAuthAttempt(kind, metrics.OutcomeSuccess)
}
