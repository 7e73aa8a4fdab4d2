package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/store"
	"github.com/ufs4life/marketplace/internal/token"
)

// StoreServiceInterface はストアハンドラーが必要とするサービスインターフェース。
type StoreServiceInterface interface {
	Create(ctx context.Context, identity token.Identity, in store.Input) (*model.Store, error)
	Get(ctx context.Context, id string) (*model.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error)
	Update(ctx context.Context, identity token.Identity, id string, patch store.Patch) (*model.Store, error)
	Delete(ctx context.Context, identity token.Identity, id string) error
}

// StoreHandler はストア管理のHTTPハンドラー。
type StoreHandler struct {
	service StoreServiceInterface
}

// NewStoreHandler はStoreHandlerを生成する。
func NewStoreHandler(service StoreServiceInterface) *StoreHandler {
	return &StoreHandler{service: service}
}

// createStoreRequest はストア作成リクエストのボディ。
// owner_idはリクエストから受け付けない。
type createStoreRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
}

// updateStoreRequest はストア更新リクエストのボディ。省略したフィールドは変更しない。
type updateStoreRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatar_url"`
}

// storeResponse はストア情報のAPIレスポンス。
type storeResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateStore はストアを作成する。
// POST /stores
func (h *StoreHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createStoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.Create(r.Context(), identity, store.Input{
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStoreResponse(st))
}

// GetStore はストア詳細を取得する。
// GET /stores/{id}
func (h *StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStoreResponse(st))
}

// ListMyStores はログインユーザーが所有するストア一覧を返す。
// GET /users/me/stores
func (h *StoreHandler) ListMyStores(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stores, err := h.service.ListByOwner(r.Context(), identity.ID())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]storeResponse, 0, len(stores))
	for _, st := range stores {
		resp = append(resp, toStoreResponse(st))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStore はストアを部分更新する。
// PUT /stores/{id}
func (h *StoreHandler) UpdateStore(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateStoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), store.Patch{
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toStoreResponse(st))
}

// DeleteStore はストアを削除する。
// DELETE /stores/{id}
func (h *StoreHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Store deleted"})
}

func toStoreResponse(st *model.Store) storeResponse {
	return storeResponse{
		ID:          st.ID,
		OwnerID:     st.OwnerID,
		Name:        st.Name,
		Description: st.Description,
		AvatarURL:   st.AvatarURL,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
	}
}
