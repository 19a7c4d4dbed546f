// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/repository"
)

const sessionCookieName = "takibi_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionHolderContextKey = contextKey("session_holder")
	currentUserContextKey   = contextKey("current_user")
)

// sessionHolder はリクエスト処理中のセッションを保持する。
// ハンドラーがログイン・ログアウトでセッションを差し替えた場合も、
// ミドルウェアは処理後にholderの現在値を永続化する。
type sessionHolder struct {
	current *model.Session
}

// UserFinder は現在のユーザーの取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SessionManagerConfig はセッション管理の設定。
type SessionManagerConfig struct {
	CookieSecure bool
	MaxAge       int // Cookieの有効期間（秒）
}

// SessionManager はCookieベースのセッションの復元と永続化を管理する。
// すべてのリクエストはセッションを持つ（未認証の場合は匿名セッション）。
type SessionManager struct {
	store  repository.SessionStore
	users  UserFinder
	config SessionManagerConfig
	logger *slog.Logger
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(store repository.SessionStore, users UserFinder, config SessionManagerConfig, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		store:  store,
		users:  users,
		config: config,
		logger: logger,
	}
}

// Middleware はセッションの復元・永続化ミドルウェアを返す。
// Cookieのセッションが見つからない（期限切れ含む）場合は匿名セッションを
// 新規作成し、Cookieを設定する。認証済みセッションの場合は現在のユーザーを
// コンテキストに注入する。ハンドラー処理後にセッションの内容を保存する。
func (m *SessionManager) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := m.restore(r)
			if err != nil {
				m.logger.Error("failed to restore session", slog.String("error", err.Error()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if session == nil {
				session, err = m.createAnonymous(r.Context())
				if err != nil {
					m.logger.Error("failed to create session", slog.String("error", err.Error()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				// レスポンス書き込み前にCookieを設定する
				m.setCookie(w, session.ID)
			}

			holder := &sessionHolder{current: session}
			ctx := context.WithValue(r.Context(), sessionHolderContextKey, holder)

			if session.UserID != "" {
				user, err := m.users.FindByID(ctx, session.UserID)
				if err != nil {
					m.logger.Error("failed to load current user", slog.String("error", err.Error()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				if user == nil {
					// ユーザーが削除済みの場合はセッションを匿名に戻す
					session.UserID = ""
				} else {
					ctx = context.WithValue(ctx, currentUserContextKey, user)
					// 外側のロギングミドルウェアへ解決済みユーザーIDを渡す
					setRequestUserID(ctx, user.ID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			// ハンドラーが差し替えた場合も含め、処理後の状態を永続化する
			if err := m.store.Save(r.Context(), holder.current); err != nil {
				m.logger.Error("failed to save session",
					slog.String("error", err.Error()),
				)
			}
		})
	}
}

// Swap は現在のリクエストのセッションを差し替え、新しいIDでCookieを再設定する。
// ログイン・ログアウト時のセッションID再発行で使用する。
// レスポンスを書き込む前に呼び出すこと。
func (m *SessionManager) Swap(w http.ResponseWriter, r *http.Request, session *model.Session) {
	holder, ok := r.Context().Value(sessionHolderContextKey).(*sessionHolder)
	if !ok {
		m.logger.Error("session holder not found in context")
		return
	}
	holder.current = session
	m.setCookie(w, session.ID)
	// ログイン直後のリクエスト自体も新しいユーザーIDでログに残す。
	// ログアウト（匿名セッションへの差し替え）では元のユーザーIDを保持する。
	if session.UserID != "" {
		setRequestUserID(r.Context(), session.UserID)
	}
}

// restore はCookieのセッションIDからセッションを取得する。
// Cookieなし、またはストアに存在しない場合はnilを返す。
func (m *SessionManager) restore(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return m.store.Find(r.Context(), cookie.Value)
}

// createAnonymous は未認証の匿名セッションを新規作成して保存する。
func (m *SessionManager) createAnonymous(ctx context.Context) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		ID:        id,
		CreatedAt: time.Now(),
	}
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// setCookie はセッションIDをHTTP Only Cookieに設定する。
func (m *SessionManager) setCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   m.config.MaxAge,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SessionFromContext はリクエストコンテキストから現在のセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) *model.Session {
	holder, ok := ctx.Value(sessionHolderContextKey).(*sessionHolder)
	if !ok {
		return nil
	}
	return holder.current
}

// CurrentUserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 未認証の場合はnilを返す。
func CurrentUserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(currentUserContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := CurrentUserFromContext(ctx)
	if user == nil {
		return "", fmt.Errorf("user not found in context")
	}
	return user.ID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。テスト用。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionHolderContextKey, &sessionHolder{current: session})
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。テスト用。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, currentUserContextKey, user)
}
