package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

var ErrInvalidObjectPath = errors.New("invalid object path")

// ObjectStore 图片等二进制对象的存储后端。Put 对同一路径是覆盖语义
type ObjectStore interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) error
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// CleanObjectPath 拒绝空路径、绝对路径和 .. 片段
func CleanObjectPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return "", ErrInvalidObjectPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidObjectPath
		}
	}
	return path, nil
}

func joinPublicURL(base, path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
