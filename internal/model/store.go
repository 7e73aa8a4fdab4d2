// Package model はドメインモデルを定義する。
package model

import "time"

// Store は出品者のストア（プロフィール）を表す。
// OwnerID は作成時の認証済みユーザーからのみ設定される。
type Store struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
