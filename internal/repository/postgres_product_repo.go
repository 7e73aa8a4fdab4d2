package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/ufs4life/marketplace/internal/model"
)

// DefaultListLimit は出品一覧の既定件数。
const DefaultListLimit = 50

// MaxListLimit は出品一覧で一度に取得できる最大件数。
const MaxListLimit = 200

// PostgresProductRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, store_id, title, description, price_cents, category, condition, images, is_sold, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var images []string
	err := s.Scan(
		&p.ID, &p.StoreID, &p.Title, &p.Description, &p.PriceCents,
		&p.Category, &p.Condition, pq.Array(&images), &p.IsSold,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Images = images
	return p, nil
}

// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// ListByStore はストアの出品一覧を新しい順で返す。
func (r *PostgresProductRepo) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products WHERE store_id = $1 ORDER BY created_at DESC`,
		storeID,
	)
}

// List はフィルタ条件に一致する出品一覧を新しい順で返す。
// Limitが0以下の場合はDefaultListLimit、MaxListLimitを超える場合はMaxListLimitを使用する。
func (r *PostgresProductRepo) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if !filter.IncludeSold {
		conds = append(conds, "is_sold = false")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, clampLimit(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	return r.query(ctx, query, args...)
}

func (r *PostgresProductRepo) query(ctx context.Context, query string, args ...any) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product rows: %w", err)
	}
	return products, nil
}

// Create は出品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.StoreID, p.Title, p.Description, p.PriceCents,
		string(p.Category), string(p.Condition), pq.Array(p.Images), p.IsSold,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		// 親ストアが同時に削除された場合
		if isForeignKeyViolation(err) {
			return ErrReferenceNotFound
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update は出品の掲載項目を上書き更新する。store_idは更新しない。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET title = $2, description = $3, price_cents = $4, category = $5, condition = $6,
		     images = $7, is_sold = $8, updated_at = $9
		 WHERE id = $1`,
		p.ID, p.Title, p.Description, p.PriceCents, string(p.Category), string(p.Condition),
		pq.Array(p.Images), p.IsSold, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定IDの出品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}

// clampLimit は一覧取得件数を既定値と上限の範囲に収める。
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
