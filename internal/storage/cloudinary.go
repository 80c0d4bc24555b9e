package storage

import (
	"context"
	"path"

	"github.com/pkg/errors"

	"classportal/internal/cloudinary"
)

// Cloudinary stores blobs as Cloudinary assets. Object keys are full public ids.
type Cloudinary struct {
	client *cloudinary.Client
}

// NewCloudinary wraps a configured client.
func NewCloudinary(client *cloudinary.Client) (*Cloudinary, error) {
	if client == nil || client.CloudName == "" || client.APIKey == "" || client.APISecret == "" {
		return nil, errors.Wrap(ErrNotConfigured, "cloudinary")
	}
	return &Cloudinary{client: client}, nil
}

func (s *Cloudinary) Name() string { return "cloudinary" }

func (s *Cloudinary) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	res, err := s.client.Upload(ctx, data, path.Base(key), contentType)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: res.PublicID, URL: res.SecureURL, ContentType: contentType}, nil
}

func (s *Cloudinary) Delete(ctx context.Context, obj Object) error {
	return s.client.Destroy(ctx, obj.Key, cloudinary.ResourceType(obj.ContentType))
}
