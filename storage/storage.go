// Package storage keeps issue image blobs. Issues only ever hold the URL an
// Uploader returns.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 10 << 20

// ErrUnsupportedType is returned when a payload is not an accepted image.
var ErrUnsupportedType = errors.New("only image files are allowed")

// UploadInput is a single object write.
type UploadInput struct {
	Key         string
	Body        []byte
	ContentType string
}

// UploadResult describes the stored object.
type UploadResult struct {
	URL string
}

// Uploader persists blobs and returns a URL clients can fetch them from.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs the payload rather than trusting the client's
// Content-Type or file name. It returns the mime type and extension.
func DetectImage(body []byte) (string, string, error) {
	if len(body) == 0 {
		return "", "", fmt.Errorf("%w: empty file", ErrUnsupportedType)
	}
	mtype := mimetype.Detect(body)
	ext, ok := allowedImages[mtype.String()]
	if !ok {
		return "", "", fmt.Errorf("%w: got %s", ErrUnsupportedType, mtype.String())
	}
	return mtype.String(), ext, nil
}
