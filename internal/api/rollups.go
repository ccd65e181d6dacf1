package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/exporter"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/store"
)

// GetRollups 月度 / 年度累计数据（按周期升序）
// GET /api/rollups
func (h *Handler) GetRollups(c *gin.Context) {
	r := h.runner.Rollups()
	c.JSON(http.StatusOK, gin.H{
		"monthly": r.Sorted(model.PeriodMonthly),
		"yearly":  r.Sorted(model.PeriodYearly),
	})
}

// ResetRollups 清空累计数据
// DELETE /api/rollups
func (h *Handler) ResetRollups(c *gin.Context) {
	if err := h.runner.ResetRollups(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// ListRuns 最近的运行记录
// GET /api/runs?limit=
func (h *Handler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.MaxRunLogs)))
	if err != nil || limit <= 0 {
		badRequest(c, "limit 必须为正整数")
		return
	}
	logs, err := h.runner.RunLogs(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": logs})
}

// DownloadTemplate 下载输入模板
// GET /api/templates/:kind
func (h *Handler) DownloadTemplate(c *gin.Context) {
	kind := c.Param("kind")
	name, err := exporter.TemplateFileName(kind)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": "not_found"})
		return
	}
	f, err := exporter.Template(kind, time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
