package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

type ImageHandler struct {
	images   *services.ImageService
	maxBytes int64
	log      *logger.Logger
}

func NewImageHandler(images *services.ImageService, maxBytes int64, log *logger.Logger) *ImageHandler {
	return &ImageHandler{images: images, maxBytes: maxBytes, log: log}
}

// Upload multipart 表单：file 为图片，path 为目标路径（groups/... 或 items/...）
func (h *ImageHandler) Upload(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	header, file, valid := h.formFile(c)
	if !valid {
		return
	}
	defer file.Close()

	url, err := h.images.UploadImage(c.Request.Context(), uid, c.PostForm("path"), header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		respondError(c, h.log, "upload image", err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"url": url})
}

// UploadAvatar multipart 表单只需 file，返回更新后的资料
func (h *ImageHandler) UploadAvatar(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	header, file, valid := h.formFile(c)
	if !valid {
		return
	}
	defer file.Close()

	profile, err := h.images.UploadAvatar(c.Request.Context(), uid, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		respondError(c, h.log, "upload avatar", err)
		return
	}
	ok(c, http.StatusOK, profile)
}

func (h *ImageHandler) formFile(c *gin.Context) (*multipart.FileHeader, multipart.File, bool) {
	if h.maxBytes > 0 {
		// 留出表单字段的余量
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing file")
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "unreadable file")
		return nil, nil, false
	}
	return header, file, true
}
