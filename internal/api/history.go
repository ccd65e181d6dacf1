package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
)

// ListHistory 查询历史采购库
// GET /api/history?keyword=
func (h *Handler) ListHistory(c *gin.Context) {
	records := h.runner.HistoryRecords(c.Query("keyword"))
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"stats":   h.runner.History().Stats(),
	})
}

// LoadHistory 手动导入历史采购数据（替换当前历史库）
// POST /api/history/load
func (h *Handler) LoadHistory(c *gin.Context) {
	h.withUpload(c, "file", func(path string) {
		n, err := h.runner.LoadHistoryFile(c.Request.Context(), path)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": n})
	})
}

// MergeHistory 将最新采购数据并入历史库
// POST /api/history/merge
func (h *Handler) MergeHistory(c *gin.Context) {
	h.withUpload(c, "file", func(path string) {
		res, failures, err := h.runner.MergeHistoryFile(c.Request.Context(), path)
		if err != nil {
			h.writeError(c, err)
			return
		}
		resp := gin.H{"merge": res}
		if len(failures) > 0 {
			warnings := make([]string, 0, len(failures))
			for _, f := range failures {
				warnings = append(warnings, f.Error())
			}
			resp["warnings"] = warnings
		}
		c.JSON(http.StatusOK, resp)
	})
}

// ExportHistory 导出历史采购库
// GET /api/history/export
func (h *Handler) ExportHistory(c *gin.Context) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("marginanalyzer_history_%d_%d.xlsx", time.Now().UnixNano(), os.Getpid()))
	if _, err := h.runner.ExportHistory(tmp); err != nil {
		_ = os.Remove(tmp)
		h.writeError(c, err)
		return
	}
	defer os.Remove(tmp)

	name := fmt.Sprintf("历史采购数据_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", contentDisposition(name))
	c.Header("Content-Type", xlsxContentType)
	c.File(tmp)
}

// ClearHistory 清空历史采购库
// DELETE /api/history
func (h *Handler) ClearHistory(c *gin.Context) {
	if err := h.runner.ClearHistory(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// withUpload 保存单个上传文件并在回调结束后删除
func (h *Handler) withUpload(c *gin.Context, field string, fn func(path string)) {
	fh, err := c.FormFile(field)
	if err != nil {
		badRequest(c, "未找到上传文件")
		return
	}
	uploads, err := h.newUploadSet()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer uploads.cleanup()

	path, err := uploads.save(c, fh)
	if err != nil {
		h.writeError(c, err)
		return
	}
	fn(path)
}
