// Package api 提供毛利分析的 HTTP 接口。
package api

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marginanalyzer/internal/config"
	"marginanalyzer/internal/pipeline"
)

// Deps 处理器依赖
type Deps struct {
	Runner     *pipeline.Runner
	Config     *config.AppConfig
	ConfigPath string // 配置保存位置，为空时不保存
	BaseDir    string // 相对路径的基准目录
	UploadDir  string // 上传文件暂存目录
	Storage    string
	Version    string
	Logger     *zap.Logger
}

// Handler API 处理器
type Handler struct {
	runner     *pipeline.Runner
	cfgMu      sync.RWMutex
	cfg        *config.AppConfig
	configPath string
	baseDir    string
	uploadDir  string
	storage    string
	version    string
	logger     *zap.Logger
	downloads  *downloadStore
	startedAt  time.Time
}

// NewHandler 创建 API 处理器
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handler{
		runner:     d.Runner,
		cfg:        cfg,
		configPath: d.ConfigPath,
		baseDir:    d.BaseDir,
		uploadDir:  d.UploadDir,
		storage:    d.Storage,
		version:    d.Version,
		logger:     logger,
		downloads:  newDownloadStore(),
		startedAt:  time.Now(),
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 配置管理
	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// 格式检查与计算
	router.POST("/check", h.Check)
	router.POST("/calculate", h.Calculate)
	router.POST("/calculate/stream", h.CalculateStream)
	router.GET("/export/download/:token", h.DownloadExport)

	// 历史采购数据
	router.GET("/history", h.ListHistory)
	router.POST("/history/load", h.LoadHistory)
	router.POST("/history/merge", h.MergeHistory)
	router.GET("/history/export", h.ExportHistory)
	router.DELETE("/history", h.ClearHistory)

	// 累计数据与运行记录
	router.GET("/rollups", h.GetRollups)
	router.DELETE("/rollups", h.ResetRollups)
	router.GET("/runs", h.ListRuns)

	// 输入模板
	router.GET("/templates/:kind", h.DownloadTemplate)
}

func (h *Handler) currentConfig() *config.AppConfig {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.cfg
}
