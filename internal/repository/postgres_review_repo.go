package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/takibi/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// Create はレビューを作成する。
func (r *PostgresReviewRepo) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, campground_id, author_id, body, rating, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		review.ID, review.CampgroundID, review.AuthorID, review.Body, review.Rating, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
func (r *PostgresReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	review := &model.Review{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, campground_id, author_id, body, rating, created_at
		 FROM reviews WHERE id = $1`,
		id,
	).Scan(&review.ID, &review.CampgroundID, &review.AuthorID, &review.Body, &review.Rating, &review.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}

	return review, nil
}

// ListByCampground はリスティングのレビュー一覧を投稿者名付きで
// 作成日時の降順で返す。
func (r *PostgresReviewRepo) ListByCampground(ctx context.Context, campgroundID string) ([]model.ReviewWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rv.id, rv.campground_id, rv.author_id, rv.body, rv.rating, rv.created_at, u.username
		 FROM reviews rv
		 JOIN users u ON u.id = rv.author_id
		 WHERE rv.campground_id = $1
		 ORDER BY rv.created_at DESC`,
		campgroundID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var list []model.ReviewWithAuthor
	for rows.Next() {
		var rv model.ReviewWithAuthor
		if err := rows.Scan(&rv.ID, &rv.CampgroundID, &rv.AuthorID, &rv.Body, &rv.Rating, &rv.CreatedAt, &rv.AuthorUsername); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		list = append(list, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return list, nil
}

// Delete は指定IDのレビューを削除する。
func (r *PostgresReviewRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reviews WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
