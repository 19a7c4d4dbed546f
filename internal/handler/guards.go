package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/takibi/internal/middleware"
	"github.com/hitoshi/takibi/internal/model"
)

type handlerContextKey string

const (
	campgroundContextKey handlerContextKey = "campground"
	reviewContextKey     handlerContextKey = "review"
)

// Guards は認証・認可のルートガードを提供する。
// 判定順序は認証チェックが先で、所有者チェックが後になるよう
// ルーターでチェーンして使用する。
type Guards struct {
	renderer    *Renderer
	campgrounds CampgroundServiceInterface
	reviews     ReviewServiceInterface
}

// NewGuards はGuardsを生成する。
func NewGuards(renderer *Renderer, campgrounds CampgroundServiceInterface, reviews ReviewServiceInterface) *Guards {
	return &Guards{
		renderer:    renderer,
		campgrounds: campgrounds,
		reviews:     reviews,
	}
}

// RequireAuthenticated は未認証リクエストをログインページへリダイレクトするガード。
// GETリクエストの場合は元のURLをセッションに記録し、ログイン後に復帰させる。
func (g *Guards) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.CurrentUserFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		if session := middleware.SessionFromContext(r.Context()); session != nil {
			if r.Method == http.MethodGet {
				session.ReturnTo = r.URL.RequestURI()
			}
			session.AddFlash(model.FlashError, "ログインが必要です。")
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// RequireCampgroundOwner はリスティングの所有者のみ通過させるガード。
// リスティングが存在しない場合は404を返す。所有者以外には権限エラーの
// フラッシュを積んで詳細ページへリダイレクトする。
// RequireAuthenticatedの後にチェーンすること。
// 取得したリスティングはコンテキストに格納され、ハンドラーで再利用できる。
func (g *Guards) RequireCampgroundOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campgroundID := chi.URLParam(r, "campgroundID")

		cg, err := g.campgrounds.Get(r.Context(), campgroundID)
		if err != nil {
			g.renderer.Fail(w, r, err, "/campgrounds")
			return
		}

		user := middleware.CurrentUserFromContext(r.Context())
		if user == nil || cg.OwnerID != user.ID {
			g.renderer.RedirectWithError(w, r, "/campgrounds/"+campgroundID, "この操作を行う権限がありません。")
			return
		}

		ctx := context.WithValue(r.Context(), campgroundContextKey, cg)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireReviewAuthor はレビューの投稿者のみ通過させるガード。
// RequireAuthenticatedの後にチェーンすること。
func (g *Guards) RequireReviewAuthor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campgroundID := chi.URLParam(r, "campgroundID")
		reviewID := chi.URLParam(r, "reviewID")

		review, err := g.reviews.Get(r.Context(), reviewID)
		if err != nil {
			g.renderer.Fail(w, r, err, "/campgrounds/"+campgroundID)
			return
		}
		if review.CampgroundID != campgroundID {
			g.renderer.RenderNotFound(w, r, "レビューが見つかりません。")
			return
		}

		user := middleware.CurrentUserFromContext(r.Context())
		if user == nil || review.AuthorID != user.ID {
			g.renderer.RedirectWithError(w, r, "/campgrounds/"+campgroundID, "この操作を行う権限がありません。")
			return
		}

		ctx := context.WithValue(r.Context(), reviewContextKey, review)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CampgroundFromContext はガードが取得したリスティングをコンテキストから取り出す。
func CampgroundFromContext(ctx context.Context) *model.Campground {
	cg, ok := ctx.Value(campgroundContextKey).(*model.Campground)
	if !ok {
		return nil
	}
	return cg
}

// ReviewFromContext はガードが取得したレビューをコンテキストから取り出す。
func ReviewFromContext(ctx context.Context) *model.Review {
	review, ok := ctx.Value(reviewContextKey).(*model.Review)
	if !ok {
		return nil
	}
	return review
}
