package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskUploader writes blobs under a local directory that the router serves
// at URLPrefix.
type DiskUploader struct {
	dir       string
	urlPrefix string
}

func NewDiskUploader(dir, urlPrefix string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: failed to create upload dir: %w", err)
	}
	return &DiskUploader{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (u *DiskUploader) Dir() string { return u.dir }

func (u *DiskUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := filepath.Base(filepath.Clean("/" + input.Key))
	if key == "/" || key == "." {
		return nil, errors.New("storage: object key is required")
	}

	if err := os.WriteFile(filepath.Join(u.dir, key), input.Body, 0o644); err != nil {
		return nil, fmt.Errorf("storage: failed to write file: %w", err)
	}
	return &UploadResult{URL: u.urlPrefix + "/" + key}, nil
}
