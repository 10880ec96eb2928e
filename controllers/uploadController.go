package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxUploadFiles = 5

type UploadController struct {
	uploader storage.Uploader
	timeout  time.Duration
}

func NewUploadController(uploader storage.Uploader, timeout time.Duration) *UploadController {
	return &UploadController{uploader: uploader, timeout: timeout}
}

// UploadImages stores up to five images from the multipart field "images"
// and returns their public URLs.
func (h *UploadController) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperrors.Validation("expected multipart form with images"))
		return
	}
	files := form.File["images"]
	switch {
	case len(files) == 0:
		respondError(c, apperrors.Validation("no images provided"))
		return
	case len(files) > maxUploadFiles:
		respondError(c, apperrors.Validation("at most %d images are allowed", maxUploadFiles))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	urls := make([]gin.H, 0, len(files))
	for _, file := range files {
		body, err := readUpload(file)
		if err != nil {
			respondError(c, err)
			return
		}
		contentType, ext, err := storage.DetectImage(body)
		if err != nil {
			respondError(c, apperrors.Validation("%s: only image files are allowed", file.Filename))
			return
		}

		result, err := h.uploader.Upload(ctx, storage.UploadInput{
			Key:         uuid.NewString() + ext,
			Body:        body,
			ContentType: contentType,
		})
		if err != nil {
			respondError(c, apperrors.Internal("failed to store image", err))
			return
		}
		log.Debug().Str("file", file.Filename).Str("url", result.URL).Msg("image stored")
		urls = append(urls, gin.H{"url": result.URL})
	}

	c.JSON(http.StatusCreated, gin.H{"images": urls})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > storage.MaxImageBytes {
		return nil, apperrors.Validation("%s exceeds the %d MB limit", file.Filename, storage.MaxImageBytes>>20)
	}
	f, err := file.Open()
	if err != nil {
		return nil, apperrors.Internal("failed to open upload", err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes+1))
	if err != nil {
		return nil, apperrors.Internal("failed to read upload", err)
	}
	if len(body) > storage.MaxImageBytes {
		return nil, apperrors.Validation("%s exceeds the %d MB limit", file.Filename, storage.MaxImageBytes>>20)
	}
	return body, nil
}
