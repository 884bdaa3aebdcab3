// Package storage keeps attachment blobs outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yukikurage/task-chat-api/internal/config"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("blob not found")

type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// BuildKey returns attachments/YYYY/MM/DD/<sha256><ext> for an upload.
func BuildKey(checksum, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("attachments/%s/%s%s", now.UTC().Format("2006/01/02"), checksum, ext)
}

// New builds the driver named by storage.driver.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Storage, error) {
	switch cfg.Storage.Driver {
	case "local", "":
		s, err := NewLocal(cfg.Storage.LocalPath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		s, err := NewS3(ctx, cfg.Storage.S3, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
