package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/token"
)

type countingCollector struct {
	rejected map[string]int
}

func (c *countingCollector) RecordTokenRejected(reason string) {
	if c.rejected == nil {
		c.rejected = make(map[string]int)
	}
	c.rejected[reason]++
}

func (c *countingCollector) RecordAuthAttempt(string, string) {}
func (c *countingCollector) RecordOwnershipDenied(string) {}
func (c *countingCollector) RecordListingCreated(string) {}
func (c *countingCollector) RecordHTTPStatus(int) {}
func (c *countingCollector) RecordRequestLatency(string, time.Duration) {}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

func TestAuthMiddleware_ValidToken_InjectsIdentity(t *testing.T) {
	var captured token.Identity
	var found bool
	handler := NewAuthMiddleware(testTokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, found = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/stores", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "alice-id"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !found || captured.ID() != "alice-id" {
		t.Errorf("identity = %q (found=%v), want %q", captured.ID(), found, "alice-id")
	}
	if captured.Email() != "alice-id@ufs4life.ac.za" {
		t.Errorf("email = %q", captured.Email())
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	handler := NewAuthMiddleware(testTokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "bearer "+issueToken(t, "alice-id"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"ヘッダーなし", "", model.ErrCodeMissingToken},
		{"Bearerスキームなし", issueToken(t, "alice-id"), model.ErrCodeMissingToken},
		{"Basic認証", "Basic YWxpY2U6cHc=", model.ErrCodeMissingToken},
		{"トークンが空", "Bearer   ", model.ErrCodeMissingToken},
		{"不正な形式", "Bearer not-a-jwt", model.ErrCodeInvalidToken},
		{"改ざんされた署名", "Bearer " + issueToken(t, "alice-id") + "x", model.ErrCodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewAuthMiddleware(testTokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/stores", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called {
				t.Error("next handler should not be called")
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if code := decodeErrorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

// 別のシークレットで署名されたトークンは拒否される
func TestAuthMiddleware_ForeignSecret_Rejected(t *testing.T) {
	other, err := token.NewService(token.Config{
		Secret: []byte("a-completely-different-secret-value!"),
		Issuer: "test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	forged, err := other.Issue("alice-id", "alice@ufs4life.ac.za")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	handler := NewAuthMiddleware(testTokens, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))
	req := httptest.NewRequest(http.MethodDelete, "/stores/1", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if code := decodeErrorCode(t, w); code != model.ErrCodeInvalidToken {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidToken)
	}
}

func TestAuthMiddleware_RecordsRejections(t *testing.T) {
	collector := &countingCollector{}
	handler := NewAuthMiddleware(testTokens, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, header := range []string{"", "Bearer garbage", "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if collector.rejected["missing"] != 1 || collector.rejected["invalid"] != 2 {
		t.Errorf("rejected = %v", collector.rejected)
	}
}

func TestIdentityFromContext_NoValue(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected ok=false for empty context")
	}
	ctx := context.WithValue(context.Background(), identityContextKey, token.Identity{})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("expected ok=false for zero identity")
	}
}

func TestContextWithIdentity_RoundTrip(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), identityFor(t, "bob-id"))
	got, ok := IdentityFromContext(ctx)
	if !ok || got.ID() != "bob-id" {
		t.Errorf("IdentityFromContext() = %q, %v", got.ID(), ok)
	}
}
