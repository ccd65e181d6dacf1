package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/pipeline"
	"marginanalyzer/internal/service/excel"
)

// statusFor 错误分类：校验与数据错误 422，文件不存在 404，其余 500
func statusFor(err error) int {
	var verr *parser.ValidationError
	var derr *excel.DataError
	switch {
	case errors.As(err, &verr), errors.As(err, &derr),
		errors.Is(err, pipeline.ErrNoSales), errors.Is(err, excel.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(status int) string {
	switch status {
	case http.StatusUnprocessableEntity:
		return "validation"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "io"
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zapPath(c), zapErr(err))
	}
	body := gin.H{"error": err.Error(), "kind": errorKind(status)}
	var verr *parser.ValidationError
	if errors.As(err, &verr) {
		body["missing"] = verr.Missing
	}
	var derr *excel.DataError
	if errors.As(err, &derr) {
		body["row"] = derr.Row
		body["column"] = derr.Column
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": errorKind(http.StatusBadRequest)})
}
