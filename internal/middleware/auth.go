// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ufs4life/marketplace/internal/metrics"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

const bearerPrefix = "bearer "

// TokenVerifier はセッショントークンを検証するインターフェース。
type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// ヘッダーがない、またはBearer形式でない場合は401 MISSING_TOKEN、
// 検証に失敗した場合は401 INVALID_TOKENを返す。
// 検証に成功したIdentityをリクエストコンテキストに注入する。ストレージにはアクセスしない。
func NewAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				collector.RecordTokenRejected("missing")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
				return
			}

			identity, err := verifier.Verify(raw)
			if err != nil {
				collector.RecordTokenRejected("invalid")
				slog.Debug("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken は "Bearer <token>" 形式のヘッダー値からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func bearerToken(header string) (string, bool) {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}

// IdentityFromContext はリクエストコンテキストから認証済みIdentityを取得する。
// 認証ミドルウェアを通過したリクエストでのみ ok=true となる。
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(token.Identity)
	if !ok || identity.IsZero() {
		return token.Identity{}, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// ログ出力用にリクエスト情報へユーザーIDも記録する。
func ContextWithIdentity(ctx context.Context, identity token.Identity) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.userID = identity.ID()
	}
	return context.WithValue(ctx, identityContextKey, identity)
}
