// Package policy は認証済みユーザーがストア・出品を変更できるかを判定する。
//
// 出品の所有者は保持せず、判定のたびに親ストアを読み直して owner_id と比較する。
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/token"
)

// ErrStoreNotFound は判定対象の出品が参照するストアが存在しないことを表す。
var ErrStoreNotFound = errors.New("store not found")

// StoreFinder はストアを取得するインターフェース。
// 見つからない場合は nil, nil を返す。
type StoreFinder interface {
	FindByID(ctx context.Context, id string) (*model.Store, error)
}

// CanMutateStore はidentityがストアの所有者であるかを返す。
// ゼロ値のIdentityやnilのストアは常に拒否する。
func CanMutateStore(identity token.Identity, store *model.Store) bool {
	if identity.IsZero() || store == nil {
		return false
	}
	return store.OwnerID == identity.ID()
}

// Policy は出品の所有権判定を行う。
type Policy struct {
	stores StoreFinder
}

// New はPolicyを生成する。
func New(stores StoreFinder) *Policy {
	return &Policy{stores: stores}
}

// CanMutateProduct は出品の親ストアを読み直し、identityが所有者かを判定する。
// 親ストアが存在しない場合はErrStoreNotFoundを返す。
func (p *Policy) CanMutateProduct(ctx context.Context, identity token.Identity, product *model.Product) (bool, error) {
	if product == nil {
		return false, nil
	}
	return p.CanCreateProduct(ctx, identity, product.StoreID)
}

// CanCreateProduct はstoreIDのストアに出品を追加できるかを判定する。
func (p *Policy) CanCreateProduct(ctx context.Context, identity token.Identity, storeID string) (bool, error) {
	store, err := p.stores.FindByID(ctx, storeID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve store owner: %w", err)
	}
	if store == nil {
		return false, ErrStoreNotFound
	}
	return CanMutateStore(identity, store), nil
}
