// Package storage abstracts the object store holding raw document bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// Disposition controls how a signed URL asks the browser to treat the object.
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

type ObjectStorage interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SignedURL(ctx context.Context, key string, disposition Disposition, ttl time.Duration) (string, error)
}

// BuildKey constructs a collision-resistant storage key for a claim document:
// claims/{claimID}/{unix-nano}-{random}{ext}. The timestamp keeps listings
// roughly chronological; the random suffix rules out collisions between
// concurrent uploads for the same claim.
func BuildKey(claimID, mimetype string, now time.Time) string {
	ext := extensionFor(mimetype)
	random := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("claims/%s/%d-%s%s", claimID, now.UnixNano(), random, ext)
}

func extensionFor(mimetype string) string {
	switch mimetype {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(mimetype); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
