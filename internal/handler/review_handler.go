package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/takibi/internal/middleware"
	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/review"
)

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Create(ctx context.Context, campgroundID, authorID string, in review.Input) (*model.Review, error)
	Get(ctx context.Context, id string) (*model.Review, error)
	ListByCampground(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error)
	Delete(ctx context.Context, id string) error
}

// ReviewHandler はレビュー投稿・削除のHTTPハンドラー。
type ReviewHandler struct {
	service  ReviewServiceInterface
	renderer *Renderer
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface, renderer *Renderer) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		renderer: renderer,
	}
}

// Create はリスティングへレビューを投稿する。
// POST /campgrounds/{campgroundID}/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	campgroundID := chi.URLParam(r, "campgroundID")
	target := "/campgrounds/" + campgroundID

	if err := r.ParseForm(); err != nil {
		h.renderer.RedirectWithError(w, r, target, "フォームの送信内容が不正です。")
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.Fail(w, r, model.NewUnauthenticatedError(), "/login")
		return
	}

	_, err = h.service.Create(r.Context(), campgroundID, userID, review.Input{
		Body:   r.PostFormValue("body"),
		Rating: r.PostFormValue("rating"),
	})
	if err != nil {
		h.renderer.Fail(w, r, err, target)
		return
	}

	h.renderer.RedirectWithSuccess(w, r, target, "レビューを投稿しました。")
}

// Delete はレビューを削除する。
// DELETE /campgrounds/{campgroundID}/reviews/{reviewID}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campgroundID := chi.URLParam(r, "campgroundID")
	reviewID := chi.URLParam(r, "reviewID")
	target := "/campgrounds/" + campgroundID

	if err := h.service.Delete(r.Context(), reviewID); err != nil {
		h.renderer.Fail(w, r, err, target)
		return
	}

	h.renderer.RedirectWithSuccess(w, r, target, "レビューを削除しました。")
}
