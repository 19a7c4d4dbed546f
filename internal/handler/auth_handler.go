package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hitoshi/takibi/internal/metrics"
	"github.com/hitoshi/takibi/internal/middleware"
	"github.com/hitoshi/takibi/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RegisterLocal(ctx context.Context, username, email, password string) (*model.User, error)
	AuthenticateLocal(ctx context.Context, username, password string) (*model.User, error)
	GetLoginURL(state string) string
	HandleGoogleCallback(ctx context.Context, code string) (*model.User, error)
	EstablishSession(ctx context.Context, prev *model.Session, userID string) (*model.Session, error)
	EndSession(ctx context.Context, prev *model.Session) (*model.Session, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はユーザー登録・ログイン・ログアウト・OAuth認証のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions *middleware.SessionManager
	renderer *Renderer
	metrics  metrics.MetricsCollector
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	sessions *middleware.SessionManager,
	renderer *Renderer,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		renderer: renderer,
		metrics:  collector,
		config:   config,
	}
}

// ShowRegister はユーザー登録フォームを表示する。
// GET /register
func (h *AuthHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/campgrounds", http.StatusFound)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "register", "ユーザー登録", nil)
}

// Register はローカル認証ユーザーを登録し、そのままログイン状態にする。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RedirectWithError(w, r, "/register", "フォームの送信内容が不正です。")
		return
	}

	user, err := h.service.RegisterLocal(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	if err != nil {
		h.renderer.Fail(w, r, err, "/register")
		return
	}

	h.establishAndRedirect(w, r, user.ID, "ようこそ、Takibiへ！")
	h.metrics.RecordRegistration("local")
}

// ShowLogin はログインフォームを表示する。
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/campgrounds", http.StatusFound)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "login", "ログイン", nil)
}

// Login はローカル認証でログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RedirectWithError(w, r, "/login", "フォームの送信内容が不正です。")
		return
	}

	user, err := h.service.AuthenticateLocal(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	if err != nil {
		h.renderer.Fail(w, r, err, "/login")
		return
	}

	h.establishAndRedirect(w, r, user.ID, "おかえりなさい！")
	h.metrics.RecordLogin("local")
}

// Logout は認証済みセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	prev := middleware.SessionFromContext(r.Context())

	session, err := h.service.EndSession(r.Context(), prev)
	if err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds")
		return
	}

	h.sessions.Swap(w, r, session)
	h.renderer.RedirectWithSuccess(w, r, "/campgrounds", "ログアウトしました。")
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.renderer.RedirectWithError(w, r, "/login", "Google認証を開始できませんでした。")
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.renderer.RedirectWithError(w, r, "/login", "Google認証に失敗しました。最初からやり直してください。")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.renderer.RedirectWithError(w, r, "/login", "Google認証がキャンセルされました。")
		return
	}

	// 3. 認証処理（未登録の場合はユーザー自動作成）
	user, err := h.service.HandleGoogleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.renderer.RedirectWithError(w, r, "/login", "Google認証に失敗しました。")
		return
	}

	h.establishAndRedirect(w, r, user.ID, "おかえりなさい！")
	h.metrics.RecordLogin("google")
}

// establishAndRedirect は新しいセッションIDを払い出してログイン状態を確立し、
// 保存されていた戻り先URL（なければキャンプ場一覧）へリダイレクトする。
func (h *AuthHandler) establishAndRedirect(w http.ResponseWriter, r *http.Request, userID, message string) {
	prev := middleware.SessionFromContext(r.Context())

	session, err := h.service.EstablishSession(r.Context(), prev, userID)
	if err != nil {
		h.renderer.Fail(w, r, err, "/login")
		return
	}
	h.sessions.Swap(w, r, session)

	target := session.ConsumeReturnTo()
	if target == "" {
		target = "/campgrounds"
	}
	h.renderer.RedirectWithSuccess(w, r, target, message)
}

// generateState はOAuthのstateパラメータを生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
