package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ufs4life/marketplace/internal/middleware"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/product"
	"github.com/ufs4life/marketplace/internal/token"
)

// ProductServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	Create(ctx context.Context, identity token.Identity, in product.Input) (*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	ListByStore(ctx context.Context, storeID string) ([]*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)
	Update(ctx context.Context, identity token.Identity, id string, patch product.Patch) (*model.Product, error)
	MarkSold(ctx context.Context, identity token.Identity, id string) (*model.Product, error)
	Delete(ctx context.Context, identity token.Identity, id string) error
}

// ProductHandler は出品管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

type createProductRequest struct {
	StoreID     string   `json:"store_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
}

// updateProductRequest は出品更新リクエストのボディ。store_idは受け付けない。
type updateProductRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	PriceCents  *int64           `json:"price_cents"`
	Category    *model.Category  `json:"category"`
	Condition   *model.Condition `json:"condition"`
	Images      *[]string        `json:"images"`
	IsSold      *bool            `json:"is_sold"`
}

// productResponse は出品情報のAPIレスポンス。
type productResponse struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Images      []string  `json:"images"`
	IsSold      bool      `json:"is_sold"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListProducts は出品一覧を新しい順に返す。
// GET /products?category=textbooks&include_sold=true&limit=20
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseProductFilter(w, r)
	if !ok {
		return
	}

	products, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// ListStoreProducts はストアの出品一覧を返す。
// GET /stores/{id}/products
func (h *ProductHandler) ListStoreProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListByStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponses(products))
}

// CreateProduct は出品を作成する。
// POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), identity, product.Input{
		StoreID:     req.StoreID,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    model.Category(req.Category),
		Condition:   model.Condition(req.Condition),
		Images:      req.Images,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// GetProduct は出品詳細を取得する。
// GET /products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// UpdateProduct は出品を部分更新する。
// PUT /products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), product.Patch{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		Condition:   req.Condition,
		Images:      req.Images,
		IsSold:      req.IsSold,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// MarkSold は出品を売約済みにする。
// POST /products/{id}/sold
func (h *ProductHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	p, err := h.service.MarkSold(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct は出品を削除する。
// DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted"})
}

// parseProductFilter はクエリパラメータから一覧のフィルタ条件を組み立てる。
// 数値・真偽値として解釈できない場合はINVALID_REQUESTを書き込みfalseを返す。
// カテゴリの妥当性はサービス層で検証する。
func parseProductFilter(w http.ResponseWriter, r *http.Request) (model.ProductFilter, bool) {
	q := r.URL.Query()
	filter := model.ProductFilter{
		Category: model.Category(q.Get("category")),
	}

	if v := q.Get("include_sold"); v != "" {
		includeSold, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return filter, false
		}
		filter.IncludeSold = includeSold
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return filter, false
		}
		filter.Limit = limit
	}

	return filter, true
}

func toProductResponse(p *model.Product) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Title:       p.Title,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Category:    string(p.Category),
		Condition:   string(p.Condition),
		Images:      images,
		IsSold:      p.IsSold,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductResponses(products []*model.Product) []productResponse {
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	return resp
}
