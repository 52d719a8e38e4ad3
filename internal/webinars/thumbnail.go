package webinars

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/pkg/response"
	"github.com/aura-webinar/livestream/pkg/storage"
)

// ThumbnailStore is the object storage thumbnails are uploaded to. *storage.S3 implements it.
type ThumbnailStore interface {
	UploadThumbnail(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	PresignThumbnailUpload(ctx context.Context, key, contentType string) (string, error)
	PublicObjectURL(key string) string
}

// ThumbnailHandler accepts thumbnail images for the wizard's thumbnail field.
type ThumbnailHandler struct {
	store  ThumbnailStore
	logger *zap.Logger
}

// NewThumbnailHandler creates a thumbnail handler. A nil store disables uploads (503).
func NewThumbnailHandler(store ThumbnailStore, logger *zap.Logger) *ThumbnailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThumbnailHandler{store: store, logger: logger}
}

// Upload handles POST /webinars/thumbnails (multipart field "file") and returns { url, key }.
func (h *ThumbnailHandler) Upload(c *gin.Context) {
	if h.store == nil {
		response.ServiceUnavailable(c, "thumbnail storage not configured (AWS_S3_THUMBNAILS_BUCKET)")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxThumbnailSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxThumbnailSize {
		response.BadRequest(c, "file exceeds 5MB")
		return
	}
	contentType, ok := storage.ThumbnailContentType(fh.Filename)
	if !ok {
		response.BadRequest(c, "file must be a jpg, png, webp or gif image")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	key := storage.ThumbnailKey(uuid.NewString(), fh.Filename)
	url, err := h.store.UploadThumbnail(c.Request.Context(), key, contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("thumbnail upload failed", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "thumbnail upload failed")
		return
	}
	response.Created(c, gin.H{"url": url, "key": key})
}

type presignRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// Presign handles POST /webinars/thumbnails/presign and returns { uploadUrl, url, key } for a
// direct browser upload.
func (h *ThumbnailHandler) Presign(c *gin.Context) {
	if h.store == nil {
		response.ServiceUnavailable(c, "thumbnail storage not configured (AWS_S3_THUMBNAILS_BUCKET)")
		return
	}
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "filename is required")
		return
	}
	contentType, ok := storage.ThumbnailContentType(req.Filename)
	if !ok {
		response.BadRequest(c, "file must be a jpg, png, webp or gif image")
		return
	}
	key := storage.ThumbnailKey(uuid.NewString(), req.Filename)
	uploadURL, err := h.store.PresignThumbnailUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("thumbnail presign failed", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to sign upload")
		return
	}
	response.OK(c, gin.H{"uploadUrl": uploadURL, "url": h.store.PublicObjectURL(key), "key": key, "contentType": contentType})
}
