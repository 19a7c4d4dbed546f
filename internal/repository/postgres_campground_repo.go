package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/takibi/internal/model"
)

// PostgresCampgroundRepo はPostgreSQLを使用したリスティングリポジトリ。
type PostgresCampgroundRepo struct {
	db *sql.DB
}

// NewPostgresCampgroundRepo はPostgresCampgroundRepoを生成する。
func NewPostgresCampgroundRepo(db *sql.DB) *PostgresCampgroundRepo {
	return &PostgresCampgroundRepo{db: db}
}

// Create はリスティングと画像を同一トランザクションで作成する。
func (r *PostgresCampgroundRepo) Create(ctx context.Context, cg *model.Campground) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO campgrounds (id, title, description, price, location, longitude, latitude, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cg.ID, cg.Title, cg.Description, cg.Price, cg.Location, cg.Longitude, cg.Latitude, cg.OwnerID, cg.CreatedAt, cg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert campground: %w", err)
	}

	for _, img := range cg.Images {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO campground_images (id, campground_id, url, storage_key, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			img.ID, cg.ID, img.URL, img.StorageKey, img.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert campground image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのリスティングを画像付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCampgroundRepo) FindByID(ctx context.Context, id string) (*model.Campground, error) {
	cg := &model.Campground{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, price, location, longitude, latitude, owner_id, created_at, updated_at
		 FROM campgrounds WHERE id = $1`,
		id,
	).Scan(&cg.ID, &cg.Title, &cg.Description, &cg.Price, &cg.Location, &cg.Longitude, &cg.Latitude, &cg.OwnerID, &cg.CreatedAt, &cg.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find campground by ID: %w", err)
	}

	images, err := r.listImages(ctx, []string{cg.ID})
	if err != nil {
		return nil, err
	}
	cg.Images = images[cg.ID]

	return cg, nil
}

// List は全リスティングを作成日時の降順で画像付きで返す。
func (r *PostgresCampgroundRepo) List(ctx context.Context) ([]*model.Campground, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, price, location, longitude, latitude, owner_id, created_at, updated_at
		 FROM campgrounds ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list campgrounds: %w", err)
	}
	defer rows.Close()

	var list []*model.Campground
	var ids []string
	for rows.Next() {
		cg := &model.Campground{}
		if err := rows.Scan(&cg.ID, &cg.Title, &cg.Description, &cg.Price, &cg.Location, &cg.Longitude, &cg.Latitude, &cg.OwnerID, &cg.CreatedAt, &cg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campground: %w", err)
		}
		list = append(list, cg)
		ids = append(ids, cg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campgrounds: %w", err)
	}

	if len(ids) == 0 {
		return list, nil
	}

	images, err := r.listImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, cg := range list {
		cg.Images = images[cg.ID]
	}

	return list, nil
}

// Update はリスティングの属性を更新する。画像はAddImagesで追加する。
func (r *PostgresCampgroundRepo) Update(ctx context.Context, cg *model.Campground) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE campgrounds
		 SET title = $2, description = $3, price = $4, location = $5, longitude = $6, latitude = $7, updated_at = $8
		 WHERE id = $1`,
		cg.ID, cg.Title, cg.Description, cg.Price, cg.Location, cg.Longitude, cg.Latitude, cg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update campground: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("campground not found: %s", cg.ID)
	}
	return nil
}

// AddImages はリスティングに画像を追記する。
func (r *PostgresCampgroundRepo) AddImages(ctx context.Context, campgroundID string, images []model.CampgroundImage) error {
	for _, img := range images {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO campground_images (id, campground_id, url, storage_key, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			img.ID, campgroundID, img.URL, img.StorageKey, img.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert campground image: %w", err)
		}
	}
	return nil
}

// Delete は指定IDのリスティングを削除する。画像・レビューはCASCADE削除される。
func (r *PostgresCampgroundRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM campgrounds WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete campground: %w", err)
	}
	return nil
}

// listImages は複数リスティングの画像をまとめて取得し、リスティングIDで
// グループ化して返す。
func (r *PostgresCampgroundRepo) listImages(ctx context.Context, campgroundIDs []string) (map[string][]model.CampgroundImage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, campground_id, url, storage_key, position
		 FROM campground_images
		 WHERE campground_id = ANY($1)
		 ORDER BY position`,
		pq.Array(campgroundIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list campground images: %w", err)
	}
	defer rows.Close()

	images := make(map[string][]model.CampgroundImage)
	for rows.Next() {
		var img model.CampgroundImage
		if err := rows.Scan(&img.ID, &img.CampgroundID, &img.URL, &img.StorageKey, &img.Position); err != nil {
			return nil, fmt.Errorf("failed to scan campground image: %w", err)
		}
		images[img.CampgroundID] = append(images[img.CampgroundID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campground images: %w", err)
	}

	return images, nil
}

// compile-time interface check
var _ CampgroundRepository = (*PostgresCampgroundRepo)(nil)
