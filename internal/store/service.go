// Package store は出品者ストアの作成・参照・更新・削除を提供する。
package store

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
	MaxNameLength        = 100
	MaxDescriptionLength = 2000
)

// Input はストア作成時の入力。IDと所有者は含まない。
type Input struct {
	Name        string
	Description string
	AvatarURL   string
}

// Patch はストア更新時の入力。nilのフィールドは変更しない。
// id, owner_id, タイムスタンプはサーバー側で管理するため含まない。
type Patch struct {
	Name        *string
	Description *string
	AvatarURL   *string
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

// Service はストアのビジネスロジックを提供する。
type Service struct {
	repo      repository.StoreRepository
	sanitizer Sanitizer
	urls      URLValidator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.StoreRepository,
	sanitizer Sanitizer,
	urls URLValidator,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		urls:      urls,
		metrics:   collector,
		now:       time.Now,
	}
}

// Create は呼び出し元を所有者とするストアを作成する。
func (s *Service) Create(ctx context.Context, identity token.Identity, in Input) (*model.Store, error) {
	if identity.IsZero() {
		return nil, model.NewInvalidTokenError()
	}

	name, err := s.cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	description, err := s.cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}
	if err := s.validateAvatarURL(in.AvatarURL); err != nil {
		return nil, err
	}

	now := s.now()
	st := &model.Store{
		ID:          uuid.New().String(),
		OwnerID:     identity.ID(),
		Name:        name,
		Description: description,
		AvatarURL:   in.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		// 有効なトークンでもユーザー行が削除済みの場合がある
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	s.metrics.RecordListingCreated("store")
	slog.Info("store created",
		slog.String("store_id", st.ID),
		slog.String("owner_id", st.OwnerID),
	)
	return st, nil
}

// Get は指定IDのストアを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Store, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewStoreNotFoundError(id)
	}

	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	if st == nil {
		return nil, model.NewStoreNotFoundError(id)
	}
	return st, nil
}

// ListByOwner は指定ユーザーが所有するストア一覧を返す。
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*model.Store, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return []*model.Store{}, nil
	}

	stores, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	if stores == nil {
		stores = []*model.Store{}
	}
	return stores, nil
}

// Update はストアを部分更新する。所有者以外はFORBIDDENを返す。
func (s *Service) Update(ctx context.Context, identity token.Identity, id string, patch Patch) (*model.Store, error) {
	st, err := s.loadForMutation(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	// 保存済みの値は作成時にサニタイズ済みのため、指定されたフィールドのみ処理する。
	if patch.Name != nil {
		if st.Name, err = s.cleanName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if st.Description, err = s.cleanDescription(*patch.Description); err != nil {
			return nil, err
		}
	}
	if patch.AvatarURL != nil {
		if err := s.validateAvatarURL(*patch.AvatarURL); err != nil {
			return nil, err
		}
		st.AvatarURL = *patch.AvatarURL
	}
	st.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewStoreNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to update store: %w", err)
	}

	slog.Info("store updated", slog.String("store_id", st.ID))
	return st, nil
}

// Delete はストアを削除する。配下の出品も削除される。
// 削除済みのストアに対する再度の削除はSTORE_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, identity token.Identity, id string) error {
	if _, err := s.loadForMutation(ctx, identity, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewStoreNotFoundError(id)
		}
		return fmt.Errorf("failed to delete store: %w", err)
	}

	slog.Info("store deleted",
		slog.String("store_id", id),
		slog.String("owner_id", identity.ID()),
	)
	return nil
}

// loadForMutation はストアを取得し、呼び出し元が所有者であることを確認する。
func (s *Service) loadForMutation(ctx context.Context, identity token.Identity, id string) (*model.Store, error) {
	if identity.IsZero() {
		return nil, model.NewInvalidTokenError()
	}

	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateStore(identity, st) {
		s.metrics.RecordOwnershipDenied("store")
		slog.Warn("store mutation denied",
			slog.String("store_id", st.ID),
			slog.String("user_id", identity.ID()),
		)
		return nil, model.NewForbiddenError()
	}
	return st, nil
}

// cleanName はストア名をサニタイズし、必須と長さを検証する。
func (s *Service) cleanName(raw string) (string, error) {
	name := s.sanitizer.PlainText(raw)
	if name == "" {
		return "", model.NewValidationError("ストア名は必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("ストア名は%d文字以内で入力してください", MaxNameLength))
	}
	return name, nil
}

func (s *Service) cleanDescription(raw string) (string, error) {
	description := s.sanitizer.Description(raw)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", model.NewValidationError(fmt.Sprintf("説明は%d文字以内で入力してください", MaxDescriptionLength))
	}
	return description, nil
}

// validateAvatarURL は空文字列を許可する。
func (s *Service) validateAvatarURL(avatarURL string) error {
	if avatarURL == "" {
		return nil
	}
	if err := s.urls.ValidateImageURL(avatarURL); err != nil {
		return model.NewValidationError(fmt.Sprintf("アバターURLが不正です: %v", err))
	}
	return nil
}
