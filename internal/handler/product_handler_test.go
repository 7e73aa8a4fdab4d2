package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/product"
	"github.com/ufs4life/marketplace/internal/token"
)

func TestProductHandler_ListProducts_ParsesQuery(t *testing.T) {
	svc := &mockProductService{
		listFn: func(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
			want := model.ProductFilter{Category: model.CategoryTextbooks, IncludeSold: true, Limit: 5}
			if filter != want {
				t.Errorf("filter = %+v, want %+v", filter, want)
			}
			return []*model.Product{{ID: "p1", Category: model.CategoryTextbooks}}, nil
		},
	}
	h := NewProductHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/products?category=textbooks&include_sold=true&limit=5", nil)
	w := httptest.NewRecorder()
	h.ListProducts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []productResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "p1" {
		t.Errorf("resp = %+v", resp)
	}
	if resp[0].Images == nil {
		t.Error("images should be an empty array, not null")
	}
}

func TestProductHandler_ListProducts_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric limit", "limit=ten"},
		{"non-boolean include_sold", "include_sold=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewProductHandler(&mockProductService{
				listFn: func(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
					t.Error("service should not be called")
					return nil, nil
				},
			})

			w := httptest.NewRecorder()
			h.ListProducts(w, httptest.NewRequest(http.MethodGet, "/products?"+tt.query, nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q", body["code"])
			}
		})
	}
}

func TestProductHandler_ListProducts_UnknownCategory(t *testing.T) {
	h := NewProductHandler(&mockProductService{
		listFn: func(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
			return nil, model.NewValidationError("未定義のカテゴリです")
		},
	})

	w := httptest.NewRecorder()
	h.ListProducts(w, httptest.NewRequest(http.MethodGet, "/products?category=cars", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestProductHandler_CreateProduct_MapsInput(t *testing.T) {
	svc := &mockProductService{
		createFn: func(ctx context.Context, identity token.Identity, in product.Input) (*model.Product, error) {
			if identity.ID() != "alice" {
				t.Errorf("identity = %q", identity.ID())
			}
			if in.StoreID != "store-1" || in.PriceCents != 15000 || in.Category != model.CategoryTextbooks ||
				in.Condition != model.ConditionGood || len(in.Images) != 1 {
				t.Errorf("input = %+v", in)
			}
			return &model.Product{ID: "p1", StoreID: in.StoreID, Title: in.Title, Images: in.Images}, nil
		},
	}
	h := NewProductHandler(svc)

	body := `{"store_id":"store-1","title":"Calculus","price_cents":15000,"category":"textbooks",` +
		`"condition":"good","images":["https://cdn.example.com/a.jpg"]}`
	req := withIdentity(t, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)), "alice")
	w := httptest.NewRecorder()
	h.CreateProduct(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestProductHandler_CreateProduct_ForeignStore_Returns403(t *testing.T) {
	h := NewProductHandler(&mockProductService{
		createFn: func(ctx context.Context, identity token.Identity, in product.Input) (*model.Product, error) {
			return nil, model.NewForbiddenError()
		},
	})

	req := withIdentity(t, httptest.NewRequest(http.MethodPost, "/products",
		strings.NewReader(`{"store_id":"store-1","title":"x"}`)), "bob")
	w := httptest.NewRecorder()
	h.CreateProduct(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestProductHandler_UpdateProduct_Patch(t *testing.T) {
	svc := &mockProductService{
		updateFn: func(ctx context.Context, identity token.Identity, id string, patch product.Patch) (*model.Product, error) {
			if patch.PriceCents == nil || *patch.PriceCents != 9000 {
				t.Errorf("patch.PriceCents = %v", patch.PriceCents)
			}
			if patch.Title != nil || patch.Images != nil {
				t.Error("absent fields should be nil")
			}
			return &model.Product{ID: id, PriceCents: *patch.PriceCents}, nil
		},
	}
	h := NewProductHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/products/p1", strings.NewReader(`{"price_cents":9000,"store_id":"other"}`))
	req = withChiURLParam(withIdentity(t, req, "alice"), "id", "p1")
	w := httptest.NewRecorder()
	h.UpdateProduct(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestProductHandler_MarkSold(t *testing.T) {
	h := NewProductHandler(&mockProductService{})

	req := httptest.NewRequest(http.MethodPost, "/products/p1/sold", nil)
	req = withChiURLParam(withIdentity(t, req, "alice"), "id", "p1")
	w := httptest.NewRecorder()
	h.MarkSold(w, req)

	var resp productResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.IsSold {
		t.Error("is_sold = false, want true")
	}
}

func TestProductHandler_DeleteProduct_NotFound(t *testing.T) {
	h := NewProductHandler(&mockProductService{
		deleteFn: func(ctx context.Context, identity token.Identity, id string) error {
			return model.NewProductNotFoundError(id)
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/products/p1", nil)
	req = withChiURLParam(withIdentity(t, req, "alice"), "id", "p1")
	w := httptest.NewRecorder()
	h.DeleteProduct(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeProductNotFound {
		t.Errorf("code = %q", body["code"])
	}
}

func TestProductHandler_ListStoreProducts_MissingStore(t *testing.T) {
	h := NewProductHandler(&mockProductService{
		listByStoreFn: func(ctx context.Context, storeID string) ([]*model.Product, error) {
			return nil, model.NewStoreNotFoundError(storeID)
		},
	})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/stores/s/products", nil), "id", "s")
	w := httptest.NewRecorder()
	h.ListStoreProducts(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
