package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ufs4life/marketplace/internal/metrics"
	"github.com/ufs4life/marketplace/internal/middleware"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     repository.HealthChecker

	// サービス
	AuthService    AuthServiceInterface
	StoreService   StoreServiceInterface
	ProductService ProductServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → (AuthGate) → RateLimit
//
// 登録・ログインはIP単位の専用レート制限のみを適用し、API全般の制限とは独立させる。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	authHandler := NewAuthHandler(deps.AuthService)
	storeHandler := NewStoreHandler(deps.StoreService)
	productHandler := NewProductHandler(deps.ProductService)

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 登録・ログイン（IP単位の専用レート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthEndpointMiddleware())

		r.Post("/users/register", authHandler.Register)
		r.Post("/users/login", authHandler.Login)
	})

	// --- 認証不要の参照系（IP単位） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/stores/{id}", storeHandler.GetStore)
		r.Get("/stores/{id}/products", productHandler.ListStoreProducts)
		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{id}", productHandler.GetProduct)
	})

	// --- 認証が必要なルート（ユーザー単位） ---
	// ミドルウェアスタック: AuthGate → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/users/me", authHandler.Me)
		r.Get("/users/me/stores", storeHandler.ListMyStores)

		r.Post("/stores", storeHandler.CreateStore)
		r.Put("/stores/{id}", storeHandler.UpdateStore)
		r.Delete("/stores/{id}", storeHandler.DeleteStore)

		r.Post("/products", productHandler.CreateProduct)
		r.Put("/products/{id}", productHandler.UpdateProduct)
		r.Post("/products/{id}/sold", productHandler.MarkSold)
		r.Delete("/products/{id}", productHandler.DeleteProduct)
	})

	return r
}
