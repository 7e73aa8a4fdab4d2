// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/ufs4life/marketplace/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しなかったことを表す。
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail はusers.emailの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("duplicate email")

// ErrReferenceNotFound は外部キー制約違反を表す。
// 作成時に参照先（ストアの所有者、出品の親ストア）が既に存在しない場合に返す。
var ErrReferenceNotFound = errors.New("referenced record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// StoreRepository はストアデータの永続化インターフェース。
type StoreRepository interface {
	// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Store, error)

	// ListByOwner は指定ユーザーが所有するストア一覧を作成日時順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error)

	// Create はストアを作成する。
	Create(ctx context.Context, store *model.Store) error

	// Update はストアのプロフィール項目を上書き更新する。owner_idは更新しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, store *model.Store) error

	// Delete は指定IDのストアを削除する。配下の出品はCASCADE削除される。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// ProductRepository は出品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// ListByStore はストアの出品一覧を新しい順で返す。
	ListByStore(ctx context.Context, storeID string) ([]*model.Product, error)

	// List はフィルタ条件に一致する出品一覧を新しい順で返す。
	List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error)

	// Create は出品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は出品の掲載項目を上書き更新する。store_idは更新しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, product *model.Product) error

	// Delete は指定IDの出品を削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// HealthChecker はDB疎通確認のインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
