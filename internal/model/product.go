// Package model はドメインモデルを定義する。
package model

import "time"

// Product はストアに属する出品を表す。
// 所有者はStoreID経由で毎回解決し、Product自身には保持しない。
type Product struct {
	ID          string
	StoreID     string
	Title       string
	Description string
	PriceCents  int64 // ZARのセント単位
	Category    Category
	Condition   Condition
	Images      []string
	IsSold      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category は出品のカテゴリを表す。
type Category string

const (
	// CategoryTextbooks は教科書。
	CategoryTextbooks Category = "textbooks"
	// CategoryElectronics は電子機器。
	CategoryElectronics Category = "electronics"
	// CategoryClothes は衣類。
	CategoryClothes Category = "clothes"
	// CategoryServices はサービス（家庭教師など）。
	CategoryServices Category = "services"
)

// Valid はカテゴリが定義済みの値かどうかを返す。
func (c Category) Valid() bool {
	switch c {
	case CategoryTextbooks, CategoryElectronics, CategoryClothes, CategoryServices:
		return true
	default:
		return false
	}
}

// Condition は出品物の状態を表す。
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
)

// Valid は状態が定義済みの値かどうかを返す。
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return true
	default:
		return false
	}
}

// ProductFilter は出品一覧のフィルタ条件を表す。
// Categoryが空の場合は全カテゴリを対象とする。
type ProductFilter struct {
	Category    Category
	IncludeSold bool
	Limit       int
}
