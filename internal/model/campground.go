// Package model はドメインモデルを定義する。
package model

import "time"

// Campground はユーザーが所有するキャンプ場リスティングを表す。
type Campground struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Location    string
	Longitude   float64
	Latitude    float64
	OwnerID     string
	Images      []CampgroundImage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CampgroundImage は外部ストレージにアップロードされた画像の参照を表す。
// URLは配信用、StorageKeyはストレージ側の削除に使用する。
type CampgroundImage struct {
	ID           string
	CampgroundID string
	URL          string
	StorageKey   string
	Position     int
}

// Review はキャンプ場に紐づくレビューを表す。
// 親リスティングへの参照（CampgroundID）を持ち、リスティング側は
// レビューIDを埋め込まない。削除は単一の書き込みで完結する。
type Review struct {
	ID           string
	CampgroundID string
	AuthorID     string
	Body         string
	Rating       int
	CreatedAt    time.Time
}

// ReviewWithAuthor はレビューと投稿者の表示名を結合した読み取り用モデル。
type ReviewWithAuthor struct {
	Review
	AuthorUsername string
}
