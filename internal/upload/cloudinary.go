// Package upload はリスティング画像の外部ストレージへのアップロードと削除を提供する。
package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// StoredImage はアップロード済み画像の参照。
// StorageKeyは削除時にストレージ側のオブジェクトを特定するためのキー。
type StoredImage struct {
	URL        string
	StorageKey string
}

// ImageStore は画像ストレージのインターフェースを定義する。
type ImageStore interface {
	// UploadFromHeader はmultipartフォームのファイルをアップロードし、
	// 配信URLとストレージキーを返す。
	UploadFromHeader(ctx context.Context, fileHeader *multipart.FileHeader) (*StoredImage, error)
	// Destroy はストレージキーで指定したオブジェクトを削除する。
	Destroy(ctx context.Context, storageKey string) error
}

// CloudinaryStore はCloudinaryをバックエンドとするImageStoreの実装。
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore はCloudinaryStoreを生成する。
// folderはCloudinary上でのアップロード先フォルダ。
func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryStore{
		cld:    cld,
		folder: folder,
	}, nil
}

// UploadFromHeader はmultipartフォームのファイルをCloudinaryにアップロードする。
func (s *CloudinaryStore) UploadFromHeader(ctx context.Context, fileHeader *multipart.FileHeader) (*StoredImage, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	return s.upload(ctx, file)
}

// upload はリーダーの内容をCloudinaryにアップロードする。
func (s *CloudinaryStore) upload(ctx context.Context, file io.Reader) (*StoredImage, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	result, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}

	return &StoredImage{
		URL:        result.SecureURL,
		StorageKey: result.PublicID,
	}, nil
}

// Destroy はPublicIDで指定したオブジェクトをCloudinaryから削除する。
func (s *CloudinaryStore) Destroy(ctx context.Context, storageKey string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: storageKey,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy cloudinary object: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ImageStore = (*CloudinaryStore)(nil)
