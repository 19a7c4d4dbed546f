// Package model はドメインモデルを定義する。
package model

import "time"

// FlashKind はフラッシュメッセージの種別を表す。
type FlashKind string

const (
	// FlashSuccess は成功通知のフラッシュメッセージ。
	FlashSuccess FlashKind = "success"
	// FlashError はエラー通知のフラッシュメッセージ。
	FlashError FlashKind = "error"
)

// Flash は次の1回のページ描画で消費される一時通知を表す。
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// IsSuccess は成功通知かどうかを返す。テンプレートでの種別判定に使用する。
func (f Flash) IsSuccess() bool {
	return f.Kind == FlashSuccess
}

// Session はクライアントCookieのオペークトークンをキーとする
// サーバーサイドセッションを表す。
// 認証済みユーザーID、フラッシュメッセージ、ログイン後の戻り先URLを保持する。
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id,omitempty"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	ReturnTo  string    `json:"return_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAuthenticated はセッションにユーザーが紐付いているかを返す。
func (s *Session) IsAuthenticated() bool {
	return s.UserID != ""
}

// AddFlash はフラッシュメッセージを追加する。
func (s *Session) AddFlash(kind FlashKind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes は溜まっているフラッシュメッセージを返し、クリアする。
// 1回の読み取りで消費される（connect-flash相当のセマンティクス）。
func (s *Session) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// ConsumeReturnTo は戻り先URLを返してクリアする。未設定の場合は空文字を返す。
func (s *Session) ConsumeReturnTo() string {
	u := s.ReturnTo
	s.ReturnTo = ""
	return u
}
