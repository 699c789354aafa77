// Package storage keeps uploaded post images on local disk or in S3.
// Keys look like "posts/<file name>" whatever the backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/cppla/yatube/config"
)

// Folder is the key prefix of every post image.
const Folder = "posts"

// ImageStore saves and serves post images.
type ImageStore interface {
	// Save stores r under Folder and returns the key. A name already in use gets a random suffix.
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// URL returns the public address of key.
	URL(key string) string
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by MediaBackend ("local" or "s3").
func New(ctx context.Context, cfg config.AppConfig) (ImageStore, error) {
	switch cfg.MediaBackend {
	case "local", "":
		return NewLocalStore(cfg.MediaRoot, cfg.MediaURL)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicURL:       cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unsupported media backend: %s", cfg.MediaBackend)
	}
}

// cleanName reduces an uploaded file name to a safe base name.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "image"
	}
	return out
}

// withSuffix turns "cat.gif" into "cat_1a2b3c4d.gif".
func withSuffix(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return stem + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ext
}

func key(name string) string {
	return Folder + "/" + name
}
