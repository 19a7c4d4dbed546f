// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ローカル認証（username+password）と外部IdP認証のどちらか、
// または両方（連携済み）で到達可能であることが不変条件。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // ローカル認証未設定（OAuthのみ）の場合は空
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasLocalCredential はローカル認証の資格情報が設定されているかを返す。
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// (provider, provider_user_id) はストアレベルでユニーク制約を持ち、
// 同一外部IDの同時初回ログインでもユーザーが重複作成されないことを保証する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}
