package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/takibi/internal/campground"
	"github.com/hitoshi/takibi/internal/metrics"
	"github.com/hitoshi/takibi/internal/middleware"
	"github.com/hitoshi/takibi/internal/model"
)

// CampgroundServiceInterface はリスティングハンドラーが必要とするサービスインターフェース。
type CampgroundServiceInterface interface {
	Create(ctx context.Context, ownerID string, in campground.Input) (*model.Campground, error)
	Get(ctx context.Context, id string) (*model.Campground, error)
	List(ctx context.Context) ([]*model.Campground, error)
	Update(ctx context.Context, id string, in campground.Input) (*model.Campground, error)
	Delete(ctx context.Context, id string) error
}

// CampgroundHandler はリスティングCRUDのHTTPハンドラー。
type CampgroundHandler struct {
	service       CampgroundServiceInterface
	reviews       ReviewServiceInterface
	renderer      *Renderer
	metrics       metrics.MetricsCollector
	maxUploadSize int64
}

// NewCampgroundHandler はCampgroundHandlerを生成する。
func NewCampgroundHandler(
	service CampgroundServiceInterface,
	reviews ReviewServiceInterface,
	renderer *Renderer,
	collector metrics.MetricsCollector,
	maxUploadSize int64,
) *CampgroundHandler {
	return &CampgroundHandler{
		service:       service,
		reviews:       reviews,
		renderer:      renderer,
		metrics:       collector,
		maxUploadSize: maxUploadSize,
	}
}

// Home はトップページを表示する。
// GET /
func (h *CampgroundHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "home", "ホーム", nil)
}

// Index はリスティング一覧を表示する。
// GET /campgrounds
func (h *CampgroundHandler) Index(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.renderer.Fail(w, r, err, "/")
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "campgrounds_index", "キャンプ場一覧", list)
}

// New はリスティング作成フォームを表示する。
// GET /campgrounds/new
func (h *CampgroundHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "campgrounds_new", "キャンプ場を登録", nil)
}

// Create はリスティングを新規作成する。
// POST /campgrounds
func (h *CampgroundHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseInput(r)
	if err != nil {
		h.renderer.RedirectWithError(w, r, "/campgrounds/new", "フォームの送信内容が不正です。")
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.renderer.Fail(w, r, model.NewUnauthenticatedError(), "/login")
		return
	}

	cg, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds/new")
		return
	}

	for range cg.Images {
		h.metrics.RecordImageUpload()
	}
	h.renderer.RedirectWithSuccess(w, r, "/campgrounds/"+cg.ID, "キャンプ場を登録しました。")
}

// showData はリスティング詳細ページのテンプレートデータ。
type showData struct {
	Campground    *model.Campground
	Reviews       []model.ReviewWithAuthor
	IsOwner       bool
	CurrentUserID string
}

// Show はリスティング詳細とレビュー一覧を表示する。
// GET /campgrounds/{campgroundID}
func (h *CampgroundHandler) Show(w http.ResponseWriter, r *http.Request) {
	campgroundID := chi.URLParam(r, "campgroundID")

	cg, err := h.service.Get(r.Context(), campgroundID)
	if err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds")
		return
	}

	reviews, err := h.reviews.ListByCampground(r.Context(), campgroundID)
	if err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds")
		return
	}

	data := showData{
		Campground: cg,
		Reviews:    reviews,
	}
	if user := middleware.CurrentUserFromContext(r.Context()); user != nil {
		data.IsOwner = cg.OwnerID == user.ID
		data.CurrentUserID = user.ID
	}

	h.renderer.Render(w, r, http.StatusOK, "campgrounds_show", cg.Title, data)
}

// Edit はリスティング編集フォームを表示する。
// GET /campgrounds/{campgroundID}/edit
func (h *CampgroundHandler) Edit(w http.ResponseWriter, r *http.Request) {
	// 所有者ガードが取得済みのリスティングを使用する
	cg := CampgroundFromContext(r.Context())
	if cg == nil {
		h.renderer.RenderNotFound(w, r, "")
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "campgrounds_edit", "キャンプ場を編集", cg)
}

// Update はリスティングを更新する。
// PUT /campgrounds/{campgroundID}
func (h *CampgroundHandler) Update(w http.ResponseWriter, r *http.Request) {
	campgroundID := chi.URLParam(r, "campgroundID")

	in, err := h.parseInput(r)
	if err != nil {
		h.renderer.RedirectWithError(w, r, "/campgrounds/"+campgroundID+"/edit", "フォームの送信内容が不正です。")
		return
	}

	cg, err := h.service.Update(r.Context(), campgroundID, in)
	if err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds/"+campgroundID+"/edit")
		return
	}

	for range in.Files {
		h.metrics.RecordImageUpload()
	}
	h.renderer.RedirectWithSuccess(w, r, "/campgrounds/"+cg.ID, "キャンプ場を更新しました。")
}

// Delete はリスティングを削除する。
// DELETE /campgrounds/{campgroundID}
func (h *CampgroundHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campgroundID := chi.URLParam(r, "campgroundID")

	if err := h.service.Delete(r.Context(), campgroundID); err != nil {
		h.renderer.Fail(w, r, err, "/campgrounds")
		return
	}

	h.renderer.RedirectWithSuccess(w, r, "/campgrounds", "キャンプ場を削除しました。")
}

// parseInput はmultipartフォームからリスティング入力を組み立てる。
func (h *CampgroundHandler) parseInput(r *http.Request) (campground.Input, error) {
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return campground.Input{}, err
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["images"]
	}

	return campground.Input{
		Title:       r.FormValue("title"),
		Location:    r.FormValue("location"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		Files:       files,
	}, nil
}
