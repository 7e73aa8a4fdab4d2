package middleware

import (
	"testing"
	"time"

	"github.com/ufs4life/marketplace/internal/token"
)

var testTokens = mustTokenService()

func mustTokenService() *token.Service {
	svc, err := token.NewService(token.Config{
		Secret: []byte("middleware-test-secret-32-bytes!!"),
		Issuer: "test",
		TTL:    time.Hour,
	})
	if err != nil {
		panic(err)
	}
	return svc
}

// issueToken はテスト用のトークンを発行する。
func issueToken(t *testing.T, userID string) string {
	t.Helper()
	raw, err := testTokens.Issue(userID, userID+"@ufs4life.ac.za")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return raw
}

// identityFor はトークンの発行と検証を経てIdentityを得る。
func identityFor(t *testing.T, userID string) token.Identity {
	t.Helper()
	ident, err := testTokens.Verify(issueToken(t, userID))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return ident
}
