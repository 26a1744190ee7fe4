// Package storage persists processed images behind a provider-neutral
// interface. Backends are selected by config at startup; callers only see
// keys and signed URLs.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the persistence boundary for processed images.
type ObjectStore interface {
	// Put writes the object. Keys come from NewObjectKey.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// SignedURL returns a time-limited download link. With asAttachment the
	// link forces a download instead of inline display.
	SignedURL(ctx context.Context, key string, asAttachment bool) (string, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewStore builds the backend named by the config.
func NewStore(cfg *Config) (ObjectStore, error) {
	switch cfg.Provider {
	case ProviderS3:
		return newS3Store(&cfg.S3)
	case ProviderDrive:
		return newDriveStore(&cfg.Drive)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// NewObjectKey generates a standardized object key for a processed image.
// Format: users/<id>/<unix-timestamp>-<nonce>.<format>
func NewObjectKey(userID uint, format string) string {
	nonce := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("users/%d/%d-%s.%s", userID, time.Now().Unix(), nonce, format)
}

// ContentTypeFor maps an encode format to its MIME type.
func ContentTypeFor(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "avif":
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}
