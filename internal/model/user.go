// Package model はドメインモデルを定義する。
package model

import "time"

// User はマーケットプレイスに登録された利用者（Identity）を表す。
// ID と Email は作成後に変更されない。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
