package httpserver

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipart framing on top of the file itself
const uploadOverhead = 1 << 20

func (h *handlers) uploadImage(c *gin.Context) {
	if h.upload == "" {
		fail(c, http.StatusServiceUnavailable, "Uploads are disabled")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+uploadOverhead)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		fail(c, http.StatusBadRequest, "No image uploaded")
		return
	}
	if fh.Size > h.maxSize {
		fail(c, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "Could not read upload")
		return
	}
	mt, err := mimetype.DetectReader(f)
	f.Close()
	if err != nil || !strings.HasPrefix(mt.String(), "image/") {
		fail(c, http.StatusUnsupportedMediaType, "Only image files are allowed")
		return
	}

	name := uuid.NewString() + mt.Extension()
	if err := c.SaveUploadedFile(fh, filepath.Join(h.upload, name)); err != nil {
		h.logger.Error("save upload", zap.String("file", name), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Could not save image")
		return
	}
	h.logger.Info("image uploaded", zap.String("file", name), zap.String("type", mt.String()), zap.Int64("size", fh.Size))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    "/uploads/" + name,
		"dbPath":  "uploads/" + name,
	})
}
