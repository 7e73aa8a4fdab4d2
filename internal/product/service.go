// Package product はストアに属する出品の作成・参照・更新・削除を提供する。
//
// 出品の変更可否は毎回親ストアを読み直して判定する（policy.Policy）。
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ufs4life/marketplace/internal/metrics"
	"github.com/ufs4life/marketplace/internal/model"
	"github.com/ufs4life/marketplace/internal/policy"
	"github.com/ufs4life/marketplace/internal/repository"
	"github.com/ufs4life/marketplace/internal/token"
)

// 入力値の上限。
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 4000
	MaxImages            = 10
	MaxPriceCents        = int64(100_000_000) // R1,000,000
)

// Input は出品作成時の入力。IDと販売状態は含まない。
type Input struct {
	StoreID     string
	Title       string
	Description string
	PriceCents  int64
	Category    model.Category
	Condition   model.Condition
	Images      []string
}

// Patch は出品更新時の入力。nilのフィールドは変更しない。
// store_idは変更できない。
type Patch struct {
	Title       *string
	Description *string
	PriceCents  *int64
	Category    *model.Category
	Condition   *model.Condition
	Images      *[]string
	IsSold      *bool
}

// Sanitizer はテキスト入力からHTMLを除去するインターフェース。
type Sanitizer interface {
	PlainText(s string) string
	Description(s string) string
}

// URLValidator は画像URLを検証するインターフェース。
type URLValidator interface {
	ValidateImageURL(rawURL string) error
}

// Service は出品のビジネスロジックを提供する。
type Service struct {
	repo      repository.ProductRepository
	stores    policy.StoreFinder
	policy    *policy.Policy
	sanitizer Sanitizer
	urls      URLValidator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.ProductRepository,
	stores policy.StoreFinder,
	sanitizer Sanitizer,
	urls URLValidator,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		stores:    stores,
		policy:    policy.New(stores),
		sanitizer: sanitizer,
		urls:      urls,
		metrics:   collector,
		now:       time.Now,
	}
}

// Create はストアに出品を追加する。ストアの所有者のみ実行できる。
func (s *Service) Create(ctx context.Context, identity token.Identity, in Input) (*model.Product, error) {
	if identity.IsZero() {
		return nil, model.NewInvalidTokenError()
	}
	if _, err := uuid.Parse(in.StoreID); err != nil {
		return nil, model.NewStoreNotFoundError(in.StoreID)
	}

	allowed, err := s.policy.CanCreateProduct(ctx, identity, in.StoreID)
	if err != nil {
		return nil, s.mapPolicyError(err, in.StoreID)
	}
	if !allowed {
		return nil, s.deny(identity, in.StoreID)
	}

	title, err := s.cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description, err := s.cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Product{
		ID:          uuid.New().String(),
		StoreID:     in.StoreID,
		Title:       title,
		Description: description,
		PriceCents:  in.PriceCents,
		Category:    in.Category,
		Condition:   in.Condition,
		Images:      in.Images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		// 所有者確認の後にストアが削除された場合
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return nil, model.NewStoreNotFoundError(in.StoreID)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.metrics.RecordListingCreated("product")
	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("store_id", p.StoreID),
		slog.String("category", string(p.Category)),
	)
	return p, nil
}

// Get は指定IDの出品を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewProductNotFoundError(id)
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError(id)
	}
	return p, nil
}

// ListByStore はストアの出品一覧を返す。ストアが存在しない場合はSTORE_NOT_FOUNDを返す。
func (s *Service) ListByStore(ctx context.Context, storeID string) ([]*model.Product, error) {
	if _, err := uuid.Parse(storeID); err != nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}

	st, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	if st == nil {
		return nil, model.NewStoreNotFoundError(storeID)
	}

	products, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return nonNil(products), nil
}

// List はフィルタ条件に一致する出品一覧を新しい順で返す。
func (s *Service) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("未定義のカテゴリです: %s", filter.Category))
	}
	if filter.Limit < 0 {
		return nil, model.NewValidationError("limitは0以上を指定してください")
	}

	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return nonNil(products), nil
}

// Update は出品を部分更新する。親ストアの所有者のみ実行できる。
func (s *Service) Update(ctx context.Context, identity token.Identity, id string, patch Patch) (*model.Product, error) {
	p, err := s.loadForMutation(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	// 保存済みのタイトルと説明は作成時にサニタイズ済みのため、指定された場合のみ処理する。
	if patch.Title != nil {
		if p.Title, err = s.cleanTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if p.Description, err = s.cleanDescription(*patch.Description); err != nil {
			return nil, err
		}
	}
	if patch.PriceCents != nil {
		p.PriceCents = *patch.PriceCents
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Condition != nil {
		p.Condition = *patch.Condition
	}
	if patch.Images != nil {
		p.Images = *patch.Images
	}
	if patch.IsSold != nil {
		p.IsSold = *patch.IsSold
	}
	if err := s.validate(p); err != nil {
		return nil, err
	}

	return s.save(ctx, p, "product updated")
}

// MarkSold は出品を売約済みにする。既に売約済みの場合もそのまま返す。
func (s *Service) MarkSold(ctx context.Context, identity token.Identity, id string) (*model.Product, error) {
	p, err := s.loadForMutation(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if p.IsSold {
		return p, nil
	}

	p.IsSold = true
	return s.save(ctx, p, "product marked sold")
}

// Delete は出品を削除する。削除済みの出品に対する再度の削除はPRODUCT_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, identity token.Identity, id string) error {
	if _, err := s.loadForMutation(ctx, identity, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProductNotFoundError(id)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	slog.Info("product deleted",
		slog.String("product_id", id),
		slog.String("user_id", identity.ID()),
	)
	return nil
}

func (s *Service) save(ctx context.Context, p *model.Product, event string) (*model.Product, error) {
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProductNotFoundError(p.ID)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	slog.Info(event, slog.String("product_id", p.ID))
	return p, nil
}

// loadForMutation は出品を取得し、親ストアを読み直して所有者を確認する。
func (s *Service) loadForMutation(ctx context.Context, identity token.Identity, id string) (*model.Product, error) {
	if identity.IsZero() {
		return nil, model.NewInvalidTokenError()
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.policy.CanMutateProduct(ctx, identity, p)
	if err != nil {
		return nil, s.mapPolicyError(err, p.StoreID)
	}
	if !allowed {
		return nil, s.deny(identity, p.StoreID)
	}
	return p, nil
}

func (s *Service) mapPolicyError(err error, storeID string) error {
	if errors.Is(err, policy.ErrStoreNotFound) {
		return model.NewStoreNotFoundError(storeID)
	}
	return err
}

func (s *Service) deny(identity token.Identity, storeID string) error {
	s.metrics.RecordOwnershipDenied("product")
	slog.Warn("product mutation denied",
		slog.String("store_id", storeID),
		slog.String("user_id", identity.ID()),
	)
	return model.NewForbiddenError()
}

// cleanTitle はタイトルをサニタイズし、必須と長さを検証する。
func (s *Service) cleanTitle(raw string) (string, error) {
	title := s.sanitizer.PlainText(raw)
	if title == "" {
		return "", model.NewValidationError("タイトルは必須です")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内で入力してください", MaxTitleLength))
	}
	return title, nil
}

func (s *Service) cleanDescription(raw string) (string, error) {
	description := s.sanitizer.Description(raw)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", model.NewValidationError(fmt.Sprintf("説明は%d文字以内で入力してください", MaxDescriptionLength))
	}
	return description, nil
}

// validate はサニタイズ済みの出品の価格・カテゴリ・状態・画像を検証する。
func (s *Service) validate(p *model.Product) error {
	if p.PriceCents < 0 {
		return model.NewValidationError("価格は0以上を指定してください")
	}
	if p.PriceCents > MaxPriceCents {
		return model.NewValidationError("価格が上限を超えています")
	}
	if !p.Category.Valid() {
		return model.NewValidationError(fmt.Sprintf("未定義のカテゴリです: %q", p.Category))
	}
	if !p.Condition.Valid() {
		return model.NewValidationError(fmt.Sprintf("未定義の状態です: %q", p.Condition))
	}

	if len(p.Images) > MaxImages {
		return model.NewValidationError(fmt.Sprintf("画像は%d枚までです", MaxImages))
	}
	for _, img := range p.Images {
		if err := s.urls.ValidateImageURL(img); err != nil {
			return model.NewValidationError(fmt.Sprintf("画像URLが不正です: %v", err))
		}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

func nonNil(products []*model.Product) []*model.Product {
	if products == nil {
		return []*model.Product{}
	}
	return products
}
