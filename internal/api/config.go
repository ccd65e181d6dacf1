package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/config"
	"marginanalyzer/internal/pipeline"
)

// GetConfig 获取当前配置
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.currentConfig())
}

// UpdateConfig 部分更新配置，保存失败只告警
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var patch config.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "无效的请求数据: "+err.Error())
		return
	}

	h.cfgMu.Lock()
	next, err := patch.Apply(h.cfg)
	if err != nil {
		h.cfgMu.Unlock()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": "validation"})
		return
	}
	h.cfg = next
	h.cfgMu.Unlock()

	h.runner.SetOptions(pipeline.OptionsFromConfig(next, h.baseDir))
	hist := h.runner.History()
	if next.History.Remember != hist.Remember() {
		hist.SetRemember(next.History.Remember)
		if next.History.Remember {
			// 重新开启时先读回已保存的历史，避免下次保存覆盖
			hist.Load(c.Request.Context())
		}
	}

	resp := gin.H{"config": next}
	if h.configPath != "" {
		if err := config.SaveConfig(h.configPath, next); err != nil {
			h.logger.Warn("save config failed", zapErr(err))
			resp["warning"] = "配置已生效，但保存失败: " + err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}
