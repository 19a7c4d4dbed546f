// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はリスティングの説明文やレビュー本文として
// 投稿されたテキストをサニタイズし、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリを使用した許可リストベースの
// ポリシーで、安全なタグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー投稿テキストのサニタイズ機能の
// インターフェースを定義する。保存前のリスティング説明文・レビュー本文に
// 使用される。
type ContentSanitizerService interface {
	// Sanitize は投稿テキストをサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, strong, em（書式のみ。リンクや画像の埋め込みは不許可）
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// リスティング説明文・レビュー本文は平文主体のため、最小限の
	// 書式タグのみ許可する。許可リストに含めないタグは自動的に除去される。
	p.AllowElements("p", "br", "strong", "em")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize は投稿テキストをサニタイズして安全なHTMLを返す。
// 前後の空白は取り除く。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
