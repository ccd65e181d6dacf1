package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/history"
	"marginanalyzer/internal/model"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Version         string         `json:"version"`
	StartedAt       time.Time      `json:"startedAt"`
	Storage         string         `json:"storage"`
	RememberHistory bool           `json:"rememberHistory"`
	History         history.Stats  `json:"history"`
	MonthlyPeriods  int            `json:"monthlyPeriods"`
	YearlyPeriods   int            `json:"yearlyPeriods"`
	LastRun         *model.RunLog  `json:"lastRun,omitempty"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	rollups := h.runner.Rollups()
	resp := StatusResponse{
		Version:         h.version,
		StartedAt:       h.startedAt,
		Storage:         h.storage,
		RememberHistory: h.runner.History().Remember(),
		History:         h.runner.History().Stats(),
		MonthlyPeriods:  len(rollups.Monthly),
		YearlyPeriods:   len(rollups.Yearly),
	}

	logs, err := h.runner.RunLogs(c.Request.Context(), 1)
	if err != nil {
		h.logger.Warn("read run logs failed", zapErr(err))
	} else if len(logs) > 0 {
		resp.LastRun = &logs[0]
	}
	c.JSON(http.StatusOK, resp)
}
