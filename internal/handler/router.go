package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/takibi/internal/metrics"
	"github.com/hitoshi/takibi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionManager *middleware.SessionManager
	RateLimiter    *middleware.RateLimiter
	CSRFConfig     middleware.CSRFConfig
	MaxUploadSize  int64

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 描画
	Renderer *Renderer

	// サービス
	AuthService       AuthServiceInterface
	AuthConfig        AuthHandlerConfig
	CampgroundService CampgroundServiceInterface
	ReviewService     ReviewServiceInterface

	// HealthCheck はGET /healthで実行される依存先の疎通確認。
	HealthCheck func(ctx context.Context) error
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → BodyLimit → MethodOverride
//	→ RateLimit(General) → Session → CSRF
//
// MethodOverrideはルートのマッチングより前に実行する必要があるため
// トップレベルに置く（グループのミドルウェアは各エンドポイントのハンドラー
// チェーンに組み込まれ、マッチング後に実行される）。
// /health と /metrics はセッション・レート制限の外に配置する。
// ログイン・登録のPOSTには認証専用のレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewBodyLimitMiddleware(deps.MaxUploadSize))
	r.Use(middleware.NewMethodOverrideMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionManager, deps.Renderer, deps.Metrics, deps.AuthConfig)
	cgHandler := NewCampgroundHandler(deps.CampgroundService, deps.ReviewService, deps.Renderer, deps.Metrics, deps.MaxUploadSize)
	reviewHandler := NewReviewHandler(deps.ReviewService, deps.Renderer)
	guards := NewGuards(deps.Renderer, deps.CampgroundService, deps.ReviewService)

	// --- 運用エンドポイント（セッション外） ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(req.Context()); err != nil {
				deps.Logger.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- アプリケーションルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.SessionManager.Middleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/", cgHandler.Home)

		// 認証
		r.Get("/register", authHandler.ShowRegister)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.Get("/login", authHandler.ShowLogin)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		// ログアウトはナビゲーションのフォーム（POST）と素のリンク（GET）の両方を受ける
		r.Post("/logout", authHandler.Logout)
		r.Get("/logout", authHandler.Logout)
		r.Get("/auth/google", authHandler.GoogleLogin)
		r.Get("/auth/google/callback", authHandler.GoogleCallback)

		// リスティング
		r.Route("/campgrounds", func(r chi.Router) {
			r.Get("/", cgHandler.Index)
			r.With(guards.RequireAuthenticated).Get("/new", cgHandler.New)
			r.With(guards.RequireAuthenticated).Post("/", cgHandler.Create)

			r.Route("/{campgroundID}", func(r chi.Router) {
				r.Get("/", cgHandler.Show)

				// ガードは認証チェック → 所有者チェックの順にチェーンする
				r.With(guards.RequireAuthenticated, guards.RequireCampgroundOwner).Get("/edit", cgHandler.Edit)
				r.With(guards.RequireAuthenticated, guards.RequireCampgroundOwner).Put("/", cgHandler.Update)
				r.With(guards.RequireAuthenticated, guards.RequireCampgroundOwner).Delete("/", cgHandler.Delete)

				// レビュー
				r.Route("/reviews", func(r chi.Router) {
					r.With(guards.RequireAuthenticated).Post("/", reviewHandler.Create)
					r.With(guards.RequireAuthenticated, guards.RequireReviewAuthor).Delete("/{reviewID}", reviewHandler.Delete)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		deps.Renderer.RenderNotFound(w, req, "")
	})

	return r
}
