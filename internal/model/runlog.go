package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus 计算运行状态
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunDegraded  RunStatus = "degraded" // 计算成功但有持久化失败
	RunFailed    RunStatus = "failed"
)

// RunLog 单次计算的运行记录
type RunLog struct {
	ID           string          `json:"id" db:"id"`
	StartedAt    time.Time       `json:"startedAt" db:"started_at"`
	FinishedAt   time.Time       `json:"finishedAt" db:"finished_at"`
	SalesFile    string          `json:"salesFile" db:"sales_file"`
	PurchaseFile string          `json:"purchaseFile" db:"purchase_file"`
	AnalysisType string          `json:"analysisType" db:"analysis_type"`
	Period       string          `json:"period" db:"period"`
	Rows         int             `json:"rows" db:"row_count"`
	Products     int             `json:"products" db:"products"`
	TotalSales   decimal.Decimal `json:"totalSales" db:"total_sales"`
	TotalCost    decimal.Decimal `json:"totalCost" db:"total_cost"`
	TotalMargin  decimal.Decimal `json:"totalMargin" db:"total_margin"`
	ReportPath   string          `json:"reportPath" db:"report_path"`
	Status       RunStatus       `json:"status" db:"status"`
	Message      string          `json:"message" db:"message"`
}
