// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/takibi/internal/model"
)

// ユニーク制約違反をストア実装から呼び出し側へ伝えるためのセンチネルエラー。
// lib/pqのunique_violation(23505)を制約名で振り分けてマップする。
var (
	// ErrDuplicateUsername はusernameの重複を表す。
	ErrDuplicateUsername = errors.New("duplicate username")
	// ErrDuplicateEmail はemailの重複を表す。
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrDuplicateIdentity は(provider, provider_user_id)の重複を表す。
	// 同一外部IDの同時初回ログインで発生し、呼び出し側は既存レコードを
	// 再取得して使用する。
	ErrDuplicateIdentity = errors.New("duplicate identity")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はusername（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はローカル認証ユーザーを作成する。
	// username/emailが既に存在する場合はErrDuplicateUsername/ErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// (provider, provider_user_id)が既に存在する場合はErrDuplicateIdentityを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionStore はセッションデータのオペークなKVストアインターフェース。
// トークン（セッションID）をキーに、シリアライズ済みセッションを保持する。
type SessionStore interface {
	// Create はセッションをTTL付きで保存する。
	Create(ctx context.Context, session *model.Session) error
	// Find は指定IDのセッションを取得し、TTLをスライディング方式で更新する。
	// 見つからない（期限切れ含む）場合はnilを返す。
	Find(ctx context.Context, id string) (*model.Session, error)
	// Save はセッションの内容を上書き保存する。TTLは維持せず再設定する。
	Save(ctx context.Context, session *model.Session) error
	// Delete は指定IDのセッションを破棄する。
	Delete(ctx context.Context, id string) error
}

// CampgroundRepository はキャンプ場リスティングの永続化インターフェース。
type CampgroundRepository interface {
	// Create はリスティングと画像を同一トランザクションで作成する。
	Create(ctx context.Context, cg *model.Campground) error

	// FindByID は指定IDのリスティングを画像付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Campground, error)

	// List は全リスティングを作成日時の降順で画像付きで返す。
	List(ctx context.Context) ([]*model.Campground, error)

	// Update はリスティングの属性を更新する。画像はAddImagesで追加する。
	Update(ctx context.Context, cg *model.Campground) error

	// AddImages はリスティングに画像を追記する。
	AddImages(ctx context.Context, campgroundID string, images []model.CampgroundImage) error

	// Delete は指定IDのリスティングを削除する。
	// 画像・レビューはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ReviewRepository はレビューの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを作成する。
	Create(ctx context.Context, review *model.Review) error

	// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Review, error)

	// ListByCampground はリスティングのレビュー一覧を投稿者名付きで
	// 作成日時の降順で返す。
	ListByCampground(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error)

	// Delete は指定IDのレビューを削除する。
	// 親リスティングはレビューIDを埋め込まないため、この1回の書き込みで完結する。
	Delete(ctx context.Context, id string) error
}
