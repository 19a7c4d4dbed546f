// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// FieldViolation は入力検証で違反したフィールドと理由を表す。
type FieldViolation struct {
	Field   string
	Message string
}

// AppError はユーザーに提示するエラーの統一フォーマットを表す。
// ハンドラー層でフラッシュ＋リダイレクトまたはエラーページに変換される。
type AppError struct {
	Code     string           // エラーコード
	Message  string           // エラーメッセージ
	Category string           // カテゴリ: auth, validation, listing, system
	Action   string           // ユーザー向け対処方法
	Fields   []FieldViolation // validationの場合のみ: 違反した全フィールド
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
)

// AsAppError はエラーチェーンからAppErrorを取り出す。見つからない場合はnilを返す。
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// NewValidationError は入力検証エラーを生成する。
// 最初の違反だけでなく、違反した全フィールドを保持する。
func NewValidationError(fields []FieldViolation) *AppError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります: " + strings.Join(msgs, "、"),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
		Fields:   fields,
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *AppError {
	return &AppError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
// リソースの存在有無を漏らさないよう、メッセージは汎用的な文言に留める。
func NewForbiddenError() *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したリスティングやレビューに対してのみ操作できます。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%sが見つかりません。", resource),
		Category: "listing",
		Action:   "URLを確認してください。既に削除されている可能性があります。",
	}
}

// NewDuplicateIdentityError は登録時の重複エラーを生成する。
func NewDuplicateIdentityError(field string) *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  fmt.Sprintf("その%sは既に使用されています。", field),
		Category: "auth",
		Action:   "別の値で再度登録してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名・パスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}
