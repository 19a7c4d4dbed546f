// Package handler はHTTPハンドラーとページ描画を提供する。
package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/takibi/internal/middleware"
	"github.com/hitoshi/takibi/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames は描画可能なページテンプレートの一覧。
var pageNames = []string{
	"home",
	"campgrounds_index",
	"campgrounds_show",
	"campgrounds_new",
	"campgrounds_edit",
	"register",
	"login",
	"error",
	"not_found",
}

// PageData は全ページ共通のテンプレートデータ。
type PageData struct {
	Title       string
	CurrentUser *model.User
	Flashes     []model.Flash
	CSRFToken   string
	Data        any
}

// Renderer はHTMLテンプレートの描画とエラーのレスポンス変換を提供する。
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
// 各ページはレイアウトと組でパースする。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, page := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = t
	}
	return &Renderer{
		templates: templates,
		logger:    logger,
	}, nil
}

// Render はページを描画する。セッションのフラッシュメッセージは
// このタイミングで消費される（次回以降の描画には現れない）。
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := rn.templates[page]
	if !ok {
		rn.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var flashes []model.Flash
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		flashes = session.PopFlashes()
	}

	pd := PageData{
		Title:       title,
		CurrentUser: middleware.CurrentUserFromContext(r.Context()),
		Flashes:     flashes,
		CSRFToken:   middleware.CSRFTokenFromContext(r.Context()),
		Data:        data,
	}

	// 描画エラー時に壊れたレスポンスを返さないよう、バッファ経由で書き込む
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		rn.logger.Error("failed to execute template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// RenderNotFound は404ページを描画する。
func (rn *Renderer) RenderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "お探しのページが見つかりません。"
	}
	rn.Render(w, r, http.StatusNotFound, "not_found", "見つかりません", message)
}

// RedirectWithSuccess は成功フラッシュを積んでリダイレクトする。
func (rn *Renderer) RedirectWithSuccess(w http.ResponseWriter, r *http.Request, target, message string) {
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		session.AddFlash(model.FlashSuccess, message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// RedirectWithError はエラーフラッシュを積んでリダイレクトする。
func (rn *Renderer) RedirectWithError(w http.ResponseWriter, r *http.Request, target, message string) {
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		session.AddFlash(model.FlashError, message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Fail はエラーをレスポンスに変換する。
//   - NOT_FOUND: 404ページを描画
//   - VALIDATION_FAILED / DUPLICATE_IDENTITY / INVALID_CREDENTIALS / FORBIDDEN:
//     エラーフラッシュを積んでfallbackへリダイレクト
//   - UNAUTHENTICATED: フラッシュを積んでログインページへリダイレクト
//   - その他: 詳細を伏せた500エラーページを描画
func (rn *Renderer) Fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	appErr := model.AsAppError(err)
	if appErr == nil {
		rn.logger.Error("unhandled error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		rn.Render(w, r, http.StatusInternalServerError, "error", "エラー", &model.AppError{
			Message: "サーバーでエラーが発生しました。",
			Action:  "しばらくしてから再度お試しください。",
		})
		return
	}

	switch appErr.Code {
	case model.ErrCodeNotFound:
		rn.RenderNotFound(w, r, appErr.Message)
	case model.ErrCodeUnauthenticated:
		rn.RedirectWithError(w, r, "/login", appErr.Message)
	case model.ErrCodeValidationFailed, model.ErrCodeDuplicateIdentity, model.ErrCodeInvalidCredentials, model.ErrCodeForbidden:
		rn.RedirectWithError(w, r, fallback, appErr.Message)
	default:
		rn.Render(w, r, http.StatusInternalServerError, "error", "エラー", appErr)
	}
}
