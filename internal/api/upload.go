package api

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// uploadSet 一次请求的上传文件，位于独立子目录，结束后整体删除
type uploadSet struct {
	dir string
}

func (h *Handler) newUploadSet() (*uploadSet, error) {
	base := h.uploadDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &uploadSet{dir: dir}, nil
}

// save 保存表单文件，保留原文件名（用于数据来源与备份）
func (u *uploadSet) save(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	dst := filepath.Join(u.dir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("保存上传文件失败: %w", err)
	}
	return dst, nil
}

// optional 读取可选的表单文件字段
func (u *uploadSet) optional(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil
	}
	return u.save(c, fh)
}

func (u *uploadSet) cleanup() {
	_ = os.RemoveAll(u.dir)
}
