package storage

import (
	"context"

	"github.com/pkg/errors"

	"classportal/internal/cloudinary"
	"classportal/internal/config"
)

// NewBlob opens the backend selected by STORAGE_BACKEND.
func NewBlob(ctx context.Context, cfg config.App) (Blob, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewLocal(cfg.LocalStorageDir, cfg.PublicBaseURL)
	case "memory":
		return NewMemory(cfg.PublicBaseURL + FilesPrefix), nil
	case "s3", "r2":
		return NewS3(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
	case "b2":
		return NewB2(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket)
	case "cloudinary":
		return NewCloudinary(cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder))
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
