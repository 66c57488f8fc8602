package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
	"github.com/Gopher0727/Rally/internal/repositories"
	"github.com/Gopher0727/Rally/internal/storage"
)

var imageFolders = []string{"groups/", "items/"}

type ImageService struct {
	store    storage.ObjectStore
	profiles *repositories.ProfileRepository
	maxBytes int64
	log      *zap.Logger
}

func NewImageService(store storage.ObjectStore, profiles *repositories.ProfileRepository, maxBytes int64, log *zap.Logger) *ImageService {
	return &ImageService{store: store, profiles: profiles, maxBytes: maxBytes, log: log}
}

var errTooLarge = errors.New("image too large")

// limitedReader 超过上限时返回 errTooLarge，而不是静默截断
type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, errTooLarge
	}
	return n, err
}

// UploadImage 写入对象存储并返回公开地址；同一路径覆盖旧对象
func (s *ImageService) UploadImage(ctx context.Context, userID int64, path, contentType string, size int64, r io.Reader) (string, error) {
	clean, err := storage.CleanObjectPath(path)
	if err != nil {
		return "", invalid("path", "must be a relative path without ..")
	}
	if !hasImageFolder(clean) {
		return "", invalid("path", "must start with groups/ or items/")
	}
	if err := s.put(ctx, clean, contentType, size, r); err != nil {
		return "", err
	}

	s.log.Info("image uploaded", zap.Int64("user_id", userID), zap.String("path", clean))
	return s.store.PublicURL(clean), nil
}

// UploadAvatar 每次写入新对象再更新 profiles.avatar_url，成功后删除旧头像
func (s *ImageService) UploadAvatar(ctx context.Context, userID int64, contentType string, size int64, r io.Reader) (*models.Profile, error) {
	prev, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, readErr("upload avatar", err)
	}

	path := fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
	if err := s.put(ctx, path, contentType, size, r); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateAvatar(ctx, userID, s.store.PublicURL(path)); err != nil {
		s.remove(ctx, path)
		return nil, writeErr("upload avatar", err)
	}
	if old, ok := s.objectPath(prev.AvatarURL); ok {
		s.remove(ctx, old)
	}

	s.log.Info("avatar updated", zap.Int64("user_id", userID), zap.String("path", path))
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, readErr("upload avatar", err)
	}
	return p, nil
}

func (s *ImageService) put(ctx context.Context, path, contentType string, size int64, r io.Reader) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return invalid("content_type", "must be an image")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return invalid("file", "too large")
	}

	body := r
	if s.maxBytes > 0 {
		body = &limitedReader{r: r, left: s.maxBytes}
	}
	if err := s.store.Put(ctx, path, contentType, body); err != nil {
		if errors.Is(err, errTooLarge) {
			return invalid("file", "too large")
		}
		return writeErr("upload image", err)
	}
	return nil
}

// remove 清理失败只记日志，残留对象不影响数据
func (s *ImageService) remove(ctx context.Context, path string) {
	if err := s.store.Delete(ctx, path); err != nil {
		s.log.Warn("delete object failed", zap.String("path", path), zap.Error(err))
	}
}

// objectPath 把本存储生成的公开地址还原成对象路径，外部地址返回 false
func (s *ImageService) objectPath(publicURL string) (string, bool) {
	base := s.store.PublicURL("")
	if publicURL == "" || !strings.HasPrefix(publicURL, base) {
		return "", false
	}
	path, err := url.PathUnescape(strings.TrimPrefix(publicURL, base))
	if err != nil {
		return "", false
	}
	path, err = storage.CleanObjectPath(path)
	if err != nil || !strings.HasPrefix(path, "avatars/") {
		return "", false
	}
	return path, true
}

func hasImageFolder(path string) bool {
	for _, f := range imageFolders {
		if strings.HasPrefix(path, f) && len(path) > len(f) {
			return true
		}
	}
	return false
}
