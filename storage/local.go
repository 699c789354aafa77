package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// LocalStore writes images below root and serves them under baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, Folder), 0o755); err != nil {
		return nil, pkgerrors.Wrap(err, "create media root")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

// Root is the directory served under the media URL.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	name = cleanName(name)
	for attempt := 0; attempt < 5; attempt++ {
		k := key(name)
		f, err := os.OpenFile(s.path(k), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = withSuffix(cleanName(name))
			continue
		}
		if err != nil {
			return "", pkgerrors.Wrap(err, "create image file")
		}
		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", pkgerrors.Wrap(err, "write image file")
		}
		return k, pkgerrors.Wrap(f.Close(), "close image file")
	}
	return "", pkgerrors.New("could not find a free image name")
}

func (s *LocalStore) URL(key string) string {
	return s.baseURL + key
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return pkgerrors.Wrap(err, "remove image file")
	}
	return nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(filepath.Clean("/" + key)))
}
