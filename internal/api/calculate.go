package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/analysis"
	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/pipeline"
)

// CalculateForm 计算请求（multipart）
type CalculateForm struct {
	AnalysisType string `form:"analysisType" binding:"omitempty,oneof=daily monthly yearly"`
}

// CheckForm 格式检查请求（multipart）
type CheckForm struct {
	Schema string `form:"schema" binding:"omitempty,oneof=sales purchase_latest purchase_history"`
}

// CalculateResponse 计算结果
type CalculateResponse struct {
	*pipeline.Result
	Status      string   `json:"status"`
	Warnings    []string `json:"warnings,omitempty"`
	DownloadURL string   `json:"downloadUrl"`
}

// Check 检查上传文件的格式
// POST /api/check
func (h *Handler) Check(c *gin.Context) {
	var form CheckForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, "无效的表结构: "+err.Error())
		return
	}
	schema := parser.Schema(form.Schema)
	if schema == "" {
		schema = parser.SchemaSales
	}

	fh, err := c.FormFile("file")
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
	rep, err := h.runner.Check(path, schema)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// parseCalculate 解析计算请求并保存上传文件
func (h *Handler) parseCalculate(c *gin.Context) (*uploadSet, pipeline.RunInput, bool) {
	var form CalculateForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, "无效的分析类型: "+err.Error())
		return nil, pipeline.RunInput{}, false
	}
	analysisType := analysis.Type(form.AnalysisType)
	if analysisType == "" {
		t, _ := analysis.ParseType(h.currentConfig().Export.AnalysisType)
		analysisType = t
	}

	salesFile, err := c.FormFile("sales")
	if err != nil {
		badRequest(c, "请上传销售数据文件")
		return nil, pipeline.RunInput{}, false
	}

	uploads, err := h.newUploadSet()
	if err != nil {
		h.writeError(c, err)
		return nil, pipeline.RunInput{}, false
	}
	salesPath, err := uploads.save(c, salesFile)
	if err != nil {
		uploads.cleanup()
		h.writeError(c, err)
		return nil, pipeline.RunInput{}, false
	}
	purchasePath, err := uploads.optional(c, "purchase")
	if err != nil {
		uploads.cleanup()
		h.writeError(c, err)
		return nil, pipeline.RunInput{}, false
	}
	return uploads, pipeline.RunInput{
		SalesPath:    salesPath,
		PurchasePath: purchasePath,
		AnalysisType: analysisType,
	}, true
}

// Calculate 执行计算并返回结果摘要与报表下载地址
// POST /api/calculate
func (h *Handler) Calculate(c *gin.Context) {
	uploads, in, ok := h.parseCalculate(c)
	if !ok {
		return
	}
	defer uploads.cleanup()

	res, err := h.runner.Run(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CalculateResponse{
		Result:      res,
		Status:      string(res.Status()),
		Warnings:    res.Warnings(),
		DownloadURL: h.reportDownloadURL(c, res.ReportPath),
	})
}

// CalculateStream 执行计算（SSE 进度 + 完成后提供下载地址）
// POST /api/calculate/stream
func (h *Handler) CalculateStream(c *gin.Context) {
	uploads, in, ok := h.parseCalculate(c)
	if !ok {
		return
	}
	defer uploads.cleanup()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for event := range h.runner.Stream(c.Request.Context(), in) {
		if event.Type == pipeline.EventDone {
			if data, ok := event.Data.(map[string]interface{}); ok {
				if p, _ := data["reportPath"].(string); p != "" {
					data["downloadUrl"] = h.reportDownloadURL(c, p)
				}
			}
		}
		b, err := json.Marshal(event)
		if err != nil {
			continue
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}
}

// reportDownloadURL 为导出目录中的报表生成一次性下载地址（文件保留）
func (h *Handler) reportDownloadURL(c *gin.Context, reportPath string) string {
	token := h.downloads.put(reportPath, filepath.Base(reportPath), downloadTTL)
	return downloadURL(c, token)
}

func downloadURL(c *gin.Context, token string) string {
	prefix := "/api"
	if i := strings.Index(c.Request.URL.Path, "/api/"); i > 0 {
		prefix = c.Request.URL.Path[:i] + "/api"
	}
	return fmt.Sprintf("%s/export/download/%s", prefix, token)
}
