package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAsAppError_UnwrapsChain(t *testing.T) {
	appErr := NewNotFoundError("キャンプ場")
	wrapped := fmt.Errorf("service failed: %w", appErr)

	got := AsAppError(wrapped)
	if got == nil {
		t.Fatal("expected AppError from wrapped chain")
	}
	if got.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", got.Code, ErrCodeNotFound)
	}
}

func TestAsAppError_NonAppError(t *testing.T) {
	if got := AsAppError(errors.New("plain error")); got != nil {
		t.Errorf("expected nil for plain error, got %+v", got)
	}
}

func TestNewValidationError_KeepsAllViolations(t *testing.T) {
	fields := []FieldViolation{
		{Field: "title", Message: "必須項目です"},
		{Field: "price", Message: "0以上の数値を指定してください"},
	}
	err := NewValidationError(fields)

	if err.Code != ErrCodeValidationFailed {
		t.Errorf("code = %q", err.Code)
	}
	if len(err.Fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(err.Fields))
	}
	// メッセージには全フィールドの違反内容が含まれること
	for _, f := range fields {
		if !strings.Contains(err.Message, f.Field) {
			t.Errorf("message should mention %s: %q", f.Field, err.Message)
		}
	}
}

func TestNewInvalidCredentialsError_DoesNotRevealWhichField(t *testing.T) {
	err := NewInvalidCredentialsError()
	// ユーザー名・パスワードのどちらが誤りかを区別しない文言であること
	if err.Message != "ユーザー名またはパスワードが正しくありません。" {
		t.Errorf("message = %q", err.Message)
	}
	if err.Code != ErrCodeInvalidCredentials {
		t.Errorf("code = %q", err.Code)
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewForbiddenError()
	got := err.Error()
	if !strings.Contains(got, ErrCodeForbidden) {
		t.Errorf("Error() = %q, should contain code", got)
	}
}
