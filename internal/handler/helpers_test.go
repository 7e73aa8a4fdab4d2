package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ufs4life/marketplace/internal/auth"
	"github.com/ufs4life/marketplace/internal/middleware"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/product"
	"github.com/ufs4life/marketplace/internal/store"
	"github.com/ufs4life/marketplace/internal/token"
)

// --- トークン ---

var testTokens = mustTokenService()

func mustTokenService() *token.Service {
	svc, err := token.NewService(token.Config{
		Secret: []byte("handler-test-secret-of-32-bytes!!"),
		Issuer: "test",
		TTL:    time.Hour,
	})
	if err != nil {
		panic(err)
	}
	return svc
}

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

// --- リクエストヘルパー ---

// withIdentity はテスト用にリクエストコンテキストへ認証済みIDを注入する。
func withIdentity(t *testing.T, r *http.Request, userID string) *http.Request {
	t.Helper()
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identityFor(t, userID)))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースする。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, email, username, password string) (*auth.Result, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.Result, error)
	meFn       func(ctx context.Context, identity token.Identity) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, username, password string) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Me(ctx context.Context, identity token.Identity) (*model.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx, identity)
	}
	return &model.User{ID: identity.ID(), Email: identity.Email()}, nil
}

type mockStoreService struct {
	createFn      func(ctx context.Context, identity token.Identity, in store.Input) (*model.Store, error)
	getFn         func(ctx context.Context, id string) (*model.Store, error)
	listByOwnerFn func(ctx context.Context, ownerID string) ([]*model.Store, error)
	updateFn      func(ctx context.Context, identity token.Identity, id string, patch store.Patch) (*model.Store, error)
	deleteFn      func(ctx context.Context, identity token.Identity, id string) error
}

func (m *mockStoreService) Create(ctx context.Context, identity token.Identity, in store.Input) (*model.Store, error) {
	if m.createFn != nil {
		return m.createFn(ctx, identity, in)
	}
	return &model.Store{ID: "store-1", OwnerID: identity.ID(), Name: in.Name}, nil
}

func (m *mockStoreService) Get(ctx context.Context, id string) (*model.Store, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Store{ID: id}, nil
}

func (m *mockStoreService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return []*model.Store{}, nil
}

func (m *mockStoreService) Update(ctx context.Context, identity token.Identity, id string, patch store.Patch) (*model.Store, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, identity, id, patch)
	}
	return &model.Store{ID: id, OwnerID: identity.ID()}, nil
}

func (m *mockStoreService) Delete(ctx context.Context, identity token.Identity, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, identity, id)
	}
	return nil
}

type mockProductService struct {
	createFn      func(ctx context.Context, identity token.Identity, in product.Input) (*model.Product, error)
	getFn         func(ctx context.Context, id string) (*model.Product, error)
	listByStoreFn func(ctx context.Context, storeID string) ([]*model.Product, error)
	listFn        func(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)
	updateFn      func(ctx context.Context, identity token.Identity, id string, patch product.Patch) (*model.Product, error)
	markSoldFn    func(ctx context.Context, identity token.Identity, id string) (*model.Product, error)
	deleteFn      func(ctx context.Context, identity token.Identity, id string) error
}

func (m *mockProductService) Create(ctx context.Context, identity token.Identity, in product.Input) (*model.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, identity, in)
	}
	return &model.Product{ID: "product-1", StoreID: in.StoreID, Title: in.Title}, nil
}

func (m *mockProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Product{ID: id}, nil
}

func (m *mockProductService) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	if m.listByStoreFn != nil {
		return m.listByStoreFn(ctx, storeID)
	}
	return []*model.Product{}, nil
}

func (m *mockProductService) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []*model.Product{}, nil
}

func (m *mockProductService) Update(ctx context.Context, identity token.Identity, id string, patch product.Patch) (*model.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, identity, id, patch)
	}
	return &model.Product{ID: id}, nil
}

func (m *mockProductService) MarkSold(ctx context.Context, identity token.Identity, id string) (*model.Product, error) {
	if m.markSoldFn != nil {
		return m.markSoldFn(ctx, identity, id)
	}
	return &model.Product{ID: id, IsSold: true}, nil
}

func (m *mockProductService) Delete(ctx context.Context, identity token.Identity, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, identity, id)
	}
	return nil
}
