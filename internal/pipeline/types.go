package pipeline

import (
	"fmt"
	"time"

	"marginanalyzer/internal/analysis"
	"marginanalyzer/internal/history"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/rollup"
)

// 进度事件类型
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventWarning  = "warning"
	EventError    = "error"
	EventDone     = "done"
)

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`    // start/progress/warning/error/done
	Percent   int         `json:"percent"` // 0-100
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProgressFunc 进度回调
type ProgressFunc func(ProgressEvent)

// RunInput 一次计算的输入
type RunInput struct {
	SalesPath    string
	PurchasePath string // 可为空：仅使用历史采购价
	AnalysisType analysis.Type
	Progress     ProgressFunc
}

// 持久化目标
const (
	TargetHistory = "history"
	TargetRollups = "rollups"
	TargetBackup  = "backup"
	TargetRunLog  = "run_log"
)

// PersistFailure 计算成功但保存失败的记录
type PersistFailure struct {
	Target string `json:"target"`
	Err    error  `json:"-"`
}

func (f PersistFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Target, f.Err)
}

func (f PersistFailure) Unwrap() error {
	return f.Err
}

// Result 计算结果
type Result struct {
	ID              string                 `json:"id"`
	StartedAt       time.Time              `json:"startedAt"`
	Duration        time.Duration          `json:"duration"`
	Period          time.Time              `json:"period"`
	Lines           []model.CalculatedLine `json:"-"`
	Analysis        analysis.Report        `json:"analysis"`
	Totals          rollup.PeriodTotals    `json:"totals"`
	Rollups         model.Rollups          `json:"rollups"`
	Merge           history.MergeResult    `json:"merge"`
	SkippedPurchase []int                  `json:"skippedPurchaseRows,omitempty"`
	Missing         []string               `json:"missingPrices"`
	SalesMapping    parser.MappingReport   `json:"salesMapping"`
	PurchaseMapping parser.MappingReport   `json:"purchaseMapping"`
	ReportPath      string                 `json:"reportPath"`
	Backups         []string               `json:"backups,omitempty"`
	PersistFailures []PersistFailure       `json:"-"`
}

// Degraded 计算成功但至少一项保存失败
func (r *Result) Degraded() bool {
	return len(r.PersistFailures) > 0
}

// Warnings 保存失败的可读描述
func (r *Result) Warnings() []string {
	out := make([]string, 0, len(r.PersistFailures))
	for _, f := range r.PersistFailures {
		out = append(out, f.Error())
	}
	return out
}

// Status 运行状态
func (r *Result) Status() model.RunStatus {
	if r.Degraded() {
		return model.RunDegraded
	}
	return model.RunSucceeded
}
