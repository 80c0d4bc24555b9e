package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"
)

// B2 stores blobs in a Backblaze B2 bucket.
type B2 struct {
	bucket *b2.Bucket
}

// NewB2 authorises the account and opens bucketName.
func NewB2(ctx context.Context, accountID, appKey, bucketName string) (*B2, error) {
	if accountID == "" || appKey == "" || bucketName == "" {
		return nil, errors.Wrap(ErrNotConfigured, "b2")
	}
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, errors.Wrap(err, "b2: create client")
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "b2: open bucket")
	}
	return &B2{bucket: bucket}, nil
}

func (s *B2) Name() string { return "b2" }

func (s *B2) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return Object{}, errors.Wrap(err, "b2: write object")
	}
	if err := w.Close(); err != nil {
		return Object{}, errors.Wrap(err, "b2: close writer")
	}
	return Object{Key: key, URL: obj.URL(), ContentType: contentType}, nil
}

func (s *B2) Delete(ctx context.Context, obj Object) error {
	err := s.bucket.Object(obj.Key).Delete(ctx)
	if err != nil && b2.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "b2: delete object")
}
