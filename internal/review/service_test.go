package review

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/repository"
	"github.com/hitoshi/takibi/internal/security"
)

// --- モック定義 ---

type mockReviewRepo struct {
	createFn           func(ctx context.Context, review *model.Review) error
	findByIDFn         func(ctx context.Context, id string) (*model.Review, error)
	listByCampgroundFn func(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error)
	deleteFn           func(ctx context.Context, id string) error
	deleteCalls        int
}

func (m *mockReviewRepo) Create(ctx context.Context, review *model.Review) error {
	if m.createFn != nil {
		return m.createFn(ctx, review)
	}
	return nil
}

func (m *mockReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockReviewRepo) ListByCampground(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error) {
	if m.listByCampgroundFn != nil {
		return m.listByCampgroundFn(ctx, campgroundID)
	}
	return nil, nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, id string) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockCampgroundRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Campground, error)
}

func (m *mockCampgroundRepo) Create(ctx context.Context, cg *model.Campground) error { return nil }
func (m *mockCampgroundRepo) FindByID(ctx context.Context, id string) (*model.Campground, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockCampgroundRepo) List(ctx context.Context) ([]*model.Campground, error) { return nil, nil }
func (m *mockCampgroundRepo) Update(ctx context.Context, cg *model.Campground) error {
	return nil
}
func (m *mockCampgroundRepo) AddImages(ctx context.Context, campgroundID string, images []model.CampgroundImage) error {
	return nil
}
func (m *mockCampgroundRepo) Delete(ctx context.Context, id string) error { return nil }

// --- compile-time interface checks ---
var _ repository.ReviewRepository = (*mockReviewRepo)(nil)
var _ repository.CampgroundRepository = (*mockCampgroundRepo)(nil)

func newTestService(reviews *mockReviewRepo, campgrounds *mockCampgroundRepo) *Service {
	if reviews == nil {
		reviews = &mockReviewRepo{}
	}
	if campgrounds == nil {
		campgrounds = &mockCampgroundRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Campground, error) {
				return &model.Campground{ID: id, OwnerID: "owner-1"}, nil
			},
		}
	}
	return NewService(reviews, campgrounds, security.NewContentSanitizer(), slog.Default())
}

// --- テスト ---

func TestCreate_Success(t *testing.T) {
	ctx := context.Background()

	var created *model.Review
	reviews := &mockReviewRepo{
		createFn: func(ctx context.Context, review *model.Review) error {
			created = review
			return nil
		},
	}
	svc := newTestService(reviews, nil)

	review, err := svc.Create(ctx, "cg-1", "author-1", Input{
		Body:   "最高のキャンプ場でした",
		Rating: "5",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created == nil {
		t.Fatal("expected review to be persisted")
	}
	if review.CampgroundID != "cg-1" {
		t.Errorf("campgroundID = %q", review.CampgroundID)
	}
	if review.AuthorID != "author-1" {
		t.Errorf("authorID = %q", review.AuthorID)
	}
	if review.Rating != 5 {
		t.Errorf("rating = %d, want 5", review.Rating)
	}
}

func TestCreate_RatingOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil, nil)

	for _, rating := range []string{"0", "6", "-1", "abc", ""} {
		_, err := svc.Create(ctx, "cg-1", "author-1", Input{Body: "本文", Rating: rating})
		appErr := model.AsAppError(err)
		if appErr == nil {
			t.Fatalf("rating %q: expected AppError, got %v", rating, err)
		}
		if appErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("rating %q: code = %q, want %q", rating, appErr.Code, model.ErrCodeValidationFailed)
		}
	}
}

func TestCreate_EmptyBodyAndInvalidRating_ReportsBothViolations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil, nil)

	_, err := svc.Create(ctx, "cg-1", "author-1", Input{Body: "  ", Rating: "10"})
	appErr := model.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if len(appErr.Fields) != 2 {
		t.Errorf("expected 2 violations, got %d: %+v", len(appErr.Fields), appErr.Fields)
	}
}

func TestCreate_MissingCampground(t *testing.T) {
	ctx := context.Background()

	campgrounds := &mockCampgroundRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Campground, error) {
			return nil, nil
		},
	}
	svc := newTestService(nil, campgrounds)

	_, err := svc.Create(ctx, "missing-cg", "author-1", Input{Body: "本文", Rating: "3"})
	appErr := model.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != model.ErrCodeNotFound {
		t.Errorf("code = %q, want %q", appErr.Code, model.ErrCodeNotFound)
	}
}

func TestCreate_SanitizesBody(t *testing.T) {
	ctx := context.Background()

	var created *model.Review
	reviews := &mockReviewRepo{
		createFn: func(ctx context.Context, review *model.Review) error {
			created = review
			return nil
		},
	}
	svc := newTestService(reviews, nil)

	_, err := svc.Create(ctx, "cg-1", "author-1", Input{
		Body:   `良い場所<script>alert("xss")</script>`,
		Rating: "4",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Body != "良い場所" {
		t.Errorf("body = %q", created.Body)
	}
}

func TestDelete_SingleWrite(t *testing.T) {
	ctx := context.Background()

	reviews := &mockReviewRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Review, error) {
			return &model.Review{ID: id, CampgroundID: "cg-1", AuthorID: "author-1"}, nil
		},
	}
	svc := newTestService(reviews, nil)

	if err := svc.Delete(ctx, "rev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// レビュー削除はレビューテーブルへの1回の書き込みで完結すること
	if reviews.deleteCalls != 1 {
		t.Errorf("delete calls = %d, want 1", reviews.deleteCalls)
	}
}

func TestDelete_MissingReview(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil, nil)

	err := svc.Delete(ctx, "missing-review")
	appErr := model.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != model.ErrCodeNotFound {
		t.Errorf("code = %q, want %q", appErr.Code, model.ErrCodeNotFound)
	}
}
