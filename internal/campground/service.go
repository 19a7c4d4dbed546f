// Package campground はキャンプ場リスティングのビジネスロジックを提供する。
package campground

import (
	"context"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/takibi/internal/geo"
	"github.com/hitoshi/takibi/internal/metrics"
	"github.com/hitoshi/takibi/internal/model"
	"github.com/hitoshi/takibi/internal/repository"
	"github.com/hitoshi/takibi/internal/security"
	"github.com/hitoshi/takibi/internal/upload"
)

// Geocoder は地名から座標を取得するインターフェース。
type Geocoder interface {
	// Geocode は地名文字列から座標を取得する。見つからない場合はnilを返す。
	Geocode(ctx context.Context, location string) (*geo.Point, error)
}

// Input はリスティングの作成・更新の入力。
// Priceはフォームの生文字列のまま受け取り、検証時に数値へ変換する。
type Input struct {
	Title       string
	Location    string
	Description string
	Price       string
	Files       []*multipart.FileHeader
}

// Service はリスティングのビジネスロジックを提供する。
type Service struct {
	repo      repository.CampgroundRepository
	images    upload.ImageStore
	geocoder  Geocoder
	sanitizer security.ContentSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	repo repository.CampgroundRepository,
	images upload.ImageStore,
	geocoder Geocoder,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		images:    images,
		geocoder:  geocoder,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
	}
}

// Create はリスティングを新規作成する。
// 検証、説明文のサニタイズ、ジオコーディング、画像アップロードを行う。
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*model.Campground, error) {
	price, violations := validateInput(in)
	if len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	lon, lat := s.resolveCoordinates(ctx, in.Location)

	images, err := s.uploadImages(ctx, in.Files, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cg := &model.Campground{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(in.Title),
		Description: s.sanitizer.Sanitize(in.Description),
		Price:       price,
		Location:    strings.TrimSpace(in.Location),
		Longitude:   lon,
		Latitude:    lat,
		OwnerID:     ownerID,
		Images:      images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := range cg.Images {
		cg.Images[i].CampgroundID = cg.ID
	}

	if err := s.repo.Create(ctx, cg); err != nil {
		s.reclaimImages(ctx, images)
		return nil, err
	}

	s.logger.Info("campground created",
		slog.String("campground_id", cg.ID),
		slog.String("owner_id", ownerID),
		slog.Int("image_count", len(images)),
	)
	return cg, nil
}

// Get は指定IDのリスティングを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Campground, error) {
	cg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cg == nil {
		return nil, model.NewNotFoundError("キャンプ場")
	}
	return cg, nil
}

// List は全リスティングを作成日時の降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.Campground, error) {
	return s.repo.List(ctx)
}

// Update はリスティングの属性を更新し、追加画像をアップロードする。
// 所有者チェックは呼び出し側のガードで行われている前提。
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Campground, error) {
	price, violations := validateInput(in)
	if len(violations) > 0 {
		return nil, model.NewValidationError(violations)
	}

	cg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cg == nil {
		return nil, model.NewNotFoundError("キャンプ場")
	}

	newLocation := strings.TrimSpace(in.Location)
	if newLocation != cg.Location {
		// 場所が変わった場合のみ再ジオコーディングする
		cg.Longitude, cg.Latitude = s.resolveCoordinates(ctx, newLocation)
	}

	cg.Title = strings.TrimSpace(in.Title)
	cg.Description = s.sanitizer.Sanitize(in.Description)
	cg.Price = price
	cg.Location = newLocation
	cg.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, cg); err != nil {
		return nil, err
	}

	if len(in.Files) > 0 {
		images, err := s.uploadImages(ctx, in.Files, len(cg.Images))
		if err != nil {
			return nil, err
		}
		for i := range images {
			images[i].CampgroundID = cg.ID
		}
		if err := s.repo.AddImages(ctx, cg.ID, images); err != nil {
			s.reclaimImages(ctx, images)
			return nil, err
		}
		cg.Images = append(cg.Images, images...)
	}

	s.logger.Info("campground updated", slog.String("campground_id", cg.ID))
	return cg, nil
}

// Delete はリスティングを削除する。
// データベースからの削除後、外部ストレージの画像をベストエフォートで回収する。
// レビューと画像レコードはデータベース側のCASCADEで削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	cg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cg == nil {
		return model.NewNotFoundError("キャンプ場")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.reclaimImages(ctx, cg.Images)

	s.logger.Info("campground deleted",
		slog.String("campground_id", id),
		slog.Int("reclaimed_images", len(cg.Images)),
	)
	return nil
}

// resolveCoordinates は地名から座標を取得する。
// ジオコーディングの失敗はリスティング操作を妨げず、座標ゼロで続行する。
func (s *Service) resolveCoordinates(ctx context.Context, location string) (lon, lat float64) {
	point, err := s.geocoder.Geocode(ctx, location)
	if err != nil {
		s.metrics.RecordGeocodeFailure()
		s.logger.Warn("geocoding failed, storing zero coordinates",
			slog.String("location", location),
			slog.String("error", err.Error()),
		)
		return 0, 0
	}
	if point == nil {
		return 0, 0
	}
	return point.Longitude, point.Latitude
}

// uploadImages はフォームのファイル群を外部ストレージへアップロードする。
// positionOffsetは既存画像の後ろに並べるための開始位置。
func (s *Service) uploadImages(ctx context.Context, files []*multipart.FileHeader, positionOffset int) ([]model.CampgroundImage, error) {
	var images []model.CampgroundImage
	for i, fh := range files {
		stored, err := s.images.UploadFromHeader(ctx, fh)
		if err != nil {
			// 途中まで成功した分は回収してから失敗を返す
			s.reclaimImages(ctx, images)
			return nil, err
		}
		images = append(images, model.CampgroundImage{
			ID:         uuid.New().String(),
			URL:        stored.URL,
			StorageKey: stored.StorageKey,
			Position:   positionOffset + i,
		})
	}
	return images, nil
}

// reclaimImages は外部ストレージの画像をベストエフォートで削除する。
// 失敗はログに残すだけで呼び出し元へは伝播しない。
func (s *Service) reclaimImages(ctx context.Context, images []model.CampgroundImage) {
	for _, img := range images {
		if img.StorageKey == "" {
			continue
		}
		if err := s.images.Destroy(ctx, img.StorageKey); err != nil {
			s.logger.Warn("failed to reclaim stored image",
				slog.String("storage_key", img.StorageKey),
				slog.String("error", err.Error()),
			)
		}
	}
}

// validateInput はリスティング入力を検証し、価格の数値変換結果と
// 違反した全フィールドを返す。
func validateInput(in Input) (float64, []model.FieldViolation) {
	var violations []model.FieldViolation

	if strings.TrimSpace(in.Title) == "" {
		violations = append(violations, model.FieldViolation{Field: "title", Message: "タイトルは必須です"})
	}
	if strings.TrimSpace(in.Location) == "" {
		violations = append(violations, model.FieldViolation{Field: "location", Message: "場所は必須です"})
	}
	if strings.TrimSpace(in.Description) == "" {
		violations = append(violations, model.FieldViolation{Field: "description", Message: "説明は必須です"})
	}

	var price float64
	priceRaw := strings.TrimSpace(in.Price)
	if priceRaw == "" {
		violations = append(violations, model.FieldViolation{Field: "price", Message: "価格は必須です"})
	} else {
		parsed, err := strconv.ParseFloat(priceRaw, 64)
		switch {
		case err != nil:
			violations = append(violations, model.FieldViolation{Field: "price", Message: "価格は数値で入力してください"})
		case parsed < 0:
			violations = append(violations, model.FieldViolation{Field: "price", Message: "価格は0以上で入力してください"})
		default:
			price = parsed
		}
	}

	return price, violations
}
