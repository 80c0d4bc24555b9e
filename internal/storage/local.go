package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FilesPrefix is the route the local backend is served from.
const FilesPrefix = "/files"

// Local writes blobs below a directory served by the api under FilesPrefix.
type Local struct {
	Dir     string
	BaseURL string
}

// NewLocal creates dir if needed.
func NewLocal(dir, publicBaseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(publicBaseURL, "/") + FilesPrefix}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) Put(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	path, err := l.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Object{}, errors.Wrap(err, "local: mkdir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Object{}, errors.Wrap(err, "local: write")
	}
	return Object{Key: key, URL: l.BaseURL + "/" + key, ContentType: contentType}, nil
}

func (l *Local) Delete(_ context.Context, obj Object) error {
	path, err := l.path(obj.Key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "local: remove")
	}
	return nil
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", errors.Errorf("local: invalid key %q", key)
	}
	return filepath.Join(l.Dir, filepath.FromSlash(clean)), nil
}
