package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ufs4life/marketplace/internal/model"
)

// PostgresStoreRepo はPostgreSQLを使用したストアリポジトリ。
type PostgresStoreRepo struct {
	db *sql.DB
}

// NewPostgresStoreRepo はPostgresStoreRepoを生成する。
func NewPostgresStoreRepo(db *sql.DB) *PostgresStoreRepo {
	return &PostgresStoreRepo{db: db}
}

const storeColumns = `id, owner_id, name, description, avatar_url, created_at, updated_at`

// FindByID は指定IDのストアを取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	store := &model.Store{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE id = $1`,
		id,
	).Scan(&store.ID, &store.OwnerID, &store.Name, &store.Description, &store.AvatarURL, &store.CreatedAt, &store.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}

	return store, nil
}

// ListByOwner は指定ユーザーが所有するストア一覧を作成日時順で返す。
func (r *PostgresStoreRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []*model.Store
	for rows.Next() {
		store := &model.Store{}
		if err := rows.Scan(&store.ID, &store.OwnerID, &store.Name, &store.Description, &store.AvatarURL, &store.CreatedAt, &store.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store row: %w", err)
		}
		stores = append(stores, store)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate store rows: %w", err)
	}
	return stores, nil
}

// Create はストアを作成する。
func (r *PostgresStoreRepo) Create(ctx context.Context, store *model.Store) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, owner_id, name, description, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		store.ID, store.OwnerID, store.Name, store.Description, store.AvatarURL, store.CreatedAt, store.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrReferenceNotFound
		}
		return fmt.Errorf("failed to insert store: %w", err)
	}
	return nil
}

// Update はストアのプロフィール項目を上書き更新する。owner_idは更新しない。
func (r *PostgresStoreRepo) Update(ctx context.Context, store *model.Store) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stores SET name = $2, description = $3, avatar_url = $4, updated_at = $5 WHERE id = $1`,
		store.ID, store.Name, store.Description, store.AvatarURL, store.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update store: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定IDのストアを削除する。配下の出品はCASCADE削除される。
func (r *PostgresStoreRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stores WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	return requireAffected(result)
}

// requireAffected は更新・削除で1行以上が対象になったことを確認する。
func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ StoreRepository = (*PostgresStoreRepo)(nil)
