// Package review はリスティングに対するレビューのビジネスロジックを提供する。
package review

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/repository"
	"github.com/hitoshi/takibi/internal/security"
)

// Input はレビュー投稿の入力。
// Ratingはフォームの生文字列のまま受け取り、検証時に数値へ変換する。
type Input struct {
	Body   string
	Rating string
}

// Service はレビューのビジネスロジックを提供する。
type Service struct {
	reviews     repository.ReviewRepository
	campgrounds repository.CampgroundRepository
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	reviews repository.ReviewRepository,
	campgrounds repository.CampgroundRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		reviews:     reviews,
		campgrounds: campgrounds,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// Create は指定リスティングへレビューを投稿する。
// リスティングが存在しない場合はNOT_FOUNDを返す。
func (s *Service) Create(ctx context.Context, campgroundID, authorID string, in Input) (*model.Review, error) {
	rating, violations := validateInput(in)
	if len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	cg, err := s.campgrounds.FindByID(ctx, campgroundID)
	if err != nil {
		return nil, err
	}
	if cg == nil {
		return nil, model.NewNotFoundError("キャンプ場")
	}

	review := &model.Review{
		ID:           uuid.New().String(),
		CampgroundID: campgroundID,
		AuthorID:     authorID,
		Body:         s.sanitizer.Sanitize(in.Body),
		Rating:       rating,
		CreatedAt:    time.Now(),
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("review created",
		slog.String("review_id", review.ID),
		slog.String("campground_id", campgroundID),
		slog.String("author_id", authorID),
	)
	return review, nil
}

// Get は指定IDのレビューを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Review, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, model.NewNotFoundError("レビュー")
	}
	return review, nil
}

// ListByCampground はリスティングのレビュー一覧を投稿者名付きで返す。
func (s *Service) ListByCampground(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error) {
	return s.reviews.ListByCampground(ctx, campgroundID)
}

// Delete はレビューを削除する。
// レビューは親リスティングへの参照のみを持つため、削除は単一の書き込みで
// 完結し、リスティング側の更新を必要としない。
func (s *Service) Delete(ctx context.Context, id string) error {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if review == nil {
		return model.NewNotFoundError("レビュー")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("review deleted", slog.String("review_id", id))
	return nil
}

// validateInput はレビュー入力を検証し、評価の数値変換結果と
// 違反した全フィールドを返す。
func validateInput(in Input) (int, []model.FieldViolation) {
	var violations []model.FieldViolation

	if strings.TrimSpace(in.Body) == "" {
		violations = append(violations, model.FieldViolation{Field: "body", Message: "本文は必須です"})
	}

	var rating int
	ratingRaw := strings.TrimSpace(in.Rating)
	if ratingRaw == "" {
		violations = append(violations, model.FieldViolation{Field: "rating", Message: "評価は必須です"})
	} else {
		parsed, err := strconv.Atoi(ratingRaw)
		switch {
		case err != nil:
			violations = append(violations, model.FieldViolation{Field: "rating", Message: "評価は数値で入力してください"})
		case parsed < 1 || parsed > 5:
			violations = append(violations, model.FieldViolation{Field: "rating", Message: "評価は1から5で入力してください"})
		default:
			rating = parsed
		}
	}

	return rating, violations
}
