package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetectImage(t *testing.T) {
	mtype, ext, err := DetectImage(pngHeader)
	require.NoError(t, err)
	require.Equal(t, "image/png", mtype)
	require.Equal(t, ".png", ext)

	_, _, err = DetectImage([]byte("%PDF-1.4 not an image"))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, _, err = DetectImage(nil)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDiskUploader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	u, err := NewDiskUploader(dir, "/uploads/")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), UploadInput{Key: "abc.png", Body: pngHeader, ContentType: "image/png"})
	require.NoError(t, err)
	require.Equal(t, "/uploads/abc.png", res.URL)

	stored, err := os.ReadFile(filepath.Join(dir, "abc.png"))
	require.NoError(t, err)
	require.Equal(t, pngHeader, stored)
}

func TestDiskUploaderStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	u, err := NewDiskUploader(dir, "/uploads")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), UploadInput{Key: "../../escape.png", Body: pngHeader})
	require.NoError(t, err)
	require.Equal(t, "/uploads/escape.png", res.URL)
	require.FileExists(t, filepath.Join(dir, "escape.png"))

	_, err = u.Upload(context.Background(), UploadInput{Key: "", Body: pngHeader})
	require.Error(t, err)
}
