// Package pipeline 串联读取、合并、计算、累计与导出，一次只执行一个计算。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"marginanalyzer/internal/analysis"
	"marginanalyzer/internal/calculator"
	"marginanalyzer/internal/exporter"
	"marginanalyzer/internal/history"
	"marginanalyzer/internal/logger"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/rollup"
	"marginanalyzer/internal/service/excel"
	"marginanalyzer/internal/store"
)

// ErrNoSales 销售表没有数据行
var ErrNoSales = errors.New("销售数据为空")

// Options 导出相关的运行参数（可在运行期修改）
type Options struct {
	ExportPath       string
	CreateSubfolders bool
	DateFormat       string
	TopN             int
	AutoOpen         bool
}

// Runner 计算协调器。持有历史采购库与累计数据，Run 之间串行。
type Runner struct {
	mu      sync.Mutex // 保护 history 与 rollups 的一次完整运行
	optsMu  sync.RWMutex
	opts    Options
	reader  *excel.Reader
	history *history.Store
	backend store.Backend
	rollups model.Rollups
	logger  *zap.Logger
	now     func() time.Time
	opener  func(string) error
}

// Option 构造选项
type Option func(*Runner)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithReader 使用自定义同义词表的读取器
func WithReader(reader *excel.Reader) Option {
	return func(r *Runner) { r.reader = reader }
}

// WithOpener 设置 auto_open 时打开报表目录的方法
func WithOpener(open func(string) error) Option {
	return func(r *Runner) { r.opener = open }
}

// NewRunner 创建协调器。backend 为 nil 时累计数据与运行记录只保存在内存
func NewRunner(hist *history.Store, backend store.Backend, opts Options, options ...Option) *Runner {
	r := &Runner{
		opts:    opts,
		reader:  excel.NewReader(nil),
		history: hist,
		backend: backend,
		rollups: model.NewRollups(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	if r.history == nil {
		r.history = history.New(backend, history.WithLogger(r.logger))
	}
	return r
}

// Reader 表格读取器
func (r *Runner) Reader() *excel.Reader {
	return r.reader
}

// History 历史采购库
func (r *Runner) History() *history.Store {
	return r.history
}

// Options 当前运行参数
func (r *Runner) Options() Options {
	r.optsMu.RLock()
	defer r.optsMu.RUnlock()
	return r.opts
}

// SetOptions 更新运行参数，下一次 Run 生效
func (r *Runner) SetOptions(opts Options) {
	r.optsMu.Lock()
	r.opts = opts
	r.optsMu.Unlock()
}

// LoadState 启动时加载历史采购库与累计数据；读取失败视为空数据，仅记录日志
func (r *Runner) LoadState(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history.Load(ctx)
	if r.backend == nil {
		return
	}
	rollups, err := r.backend.LoadRollups(ctx)
	if err != nil {
		r.logger.Warn("load rollups failed, starting empty", zap.Error(err))
		rollups = model.NewRollups()
	}
	r.rollups = rollups
	r.logger.Info("rollups loaded",
		zap.Int("monthly", len(rollups.Monthly)),
		zap.Int("yearly", len(rollups.Yearly)))
}

// Rollups 当前累计数据的副本
func (r *Runner) Rollups() model.Rollups {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollups.Clone()
}

// ResetRollups 清空累计数据（内存与持久化）
func (r *Runner) ResetRollups(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rollups = model.NewRollups()
	if r.backend == nil {
		return nil
	}
	if err := r.backend.ClearRollups(ctx); err != nil {
		return fmt.Errorf("clear rollups: %w", err)
	}
	return nil
}

// RunLogs 最近的运行记录
func (r *Runner) RunLogs(ctx context.Context, limit int) ([]model.RunLog, error) {
	if r.backend == nil {
		return []model.RunLog{}, nil
	}
	return r.backend.RunLogs(ctx, limit)
}

// Stream 异步执行 Run，通过通道返回进度事件；最后一个事件为 done 或 error
func (r *Runner) Stream(ctx context.Context, in RunInput) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 100)
	go func() {
		defer close(ch)
		in.Progress = func(e ProgressEvent) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		}
		_, _ = r.Run(ctx, in)
	}()
	return ch
}

// Run 执行一次完整计算。
// 校验、读取与数据质量错误在写出任何结果之前返回；
// 计算成功后的保存失败记录在 Result.PersistFailures 中，不影响返回值。
func (r *Runner) Run(ctx context.Context, in RunInput) (res *Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := r.Options()
	analysisType := in.AnalysisType
	if analysisType == "" {
		analysisType = analysis.Daily
	}

	res = &Result{ID: uuid.NewString(), StartedAt: r.now().UTC()}
	emit := emitter(in.Progress)

	ctx, span := logger.StartSpan(ctx, "pipeline.run",
		attribute.String("sales_file", filepath.Base(in.SalesPath)),
		attribute.String("purchase_file", filepath.Base(in.PurchasePath)),
		attribute.String("analysis_type", string(analysisType)))
	log := r.logger.With(zap.String("run_id", res.ID))
	log = log.With(logger.TraceFields(ctx)...)

	defer func() {
		logger.EndSpan(span, err)
		if err == nil {
			return
		}
		log.Error("calculation failed", zap.Error(err))
		emit(EventError, 100, err.Error(), nil)
		r.appendRunLog(ctx, log, model.RunLog{
			ID:           res.ID,
			StartedAt:    res.StartedAt,
			FinishedAt:   r.now().UTC(),
			SalesFile:    filepath.Base(in.SalesPath),
			PurchaseFile: filepath.Base(in.PurchasePath),
			AnalysisType: string(analysisType),
			Status:       model.RunFailed,
			Message:      err.Error(),
		})
		res = nil
	}()

	emit(EventStart, 0, "开始计算", map[string]string{
		"sales":    filepath.Base(in.SalesPath),
		"purchase": filepath.Base(in.PurchasePath),
	})

	// 1. 销售数据
	var sales []model.SalesRecord
	if err := stage(ctx, "read_sales", func(ctx context.Context) error {
		table, report, err := r.reader.Load(in.SalesPath, parser.SchemaSales)
		res.SalesMapping = report
		if err != nil {
			return err
		}
		sales, err = r.reader.ParseSales(table)
		if err != nil {
			return err
		}
		if len(sales) == 0 {
			return fmt.Errorf("%s: %w", filepath.Base(in.SalesPath), ErrNoSales)
		}
		return nil
	}); err != nil {
		return res, err
	}
	emit(EventProgress, 15, fmt.Sprintf("读取销售数据 %d 行", len(sales)), nil)

	// 2. 最新采购数据
	var purchases []model.PurchaseRecord
	if in.PurchasePath != "" {
		if err := stage(ctx, "read_purchase", func(ctx context.Context) error {
			table, report, err := r.reader.Load(in.PurchasePath, parser.SchemaPurchaseLatest)
			res.PurchaseMapping = report
			if err != nil {
				return err
			}
			purchases, res.SkippedPurchase, err = r.reader.ParsePurchases(table, parser.SchemaPurchaseLatest, false)
			return err
		}); err != nil {
			return res, err
		}
		emit(EventProgress, 25, fmt.Sprintf("读取最新采购数据 %d 行", len(purchases)), nil)
	}

	// 3. 合并历史采购价
	historyLoaded := r.history.Remember() && r.history.Len() > 0
	prices := r.mergePrices(ctx, log, purchases, res)
	emit(EventProgress, 35, fmt.Sprintf("采购价库共 %d 个商品", res.Merge.Total), res.Merge)

	// 4. 计算毛利
	_, calcSpan := logger.StartSpan(ctx, "calculate")
	res.Lines = calculator.Calculate(sales, prices)
	res.Missing = calculator.Missing(res.Lines)
	res.Totals = rollup.Totals(res.Lines)
	logger.EndSpan(calcSpan, nil)
	if len(res.Missing) > 0 {
		emit(EventWarning, 45, fmt.Sprintf("%d 个商品缺少采购价，按 0 成本计算", len(res.Missing)), res.Missing)
	} else {
		emit(EventProgress, 45, "毛利计算完成", nil)
	}

	// 5. 累计：导出成功后才提交，失败的运行不计入累计
	res.Period = rollup.PeriodOf(res.Lines, calendarDate(r.now()))
	next := rollup.Accumulate(r.rollups, res.Lines, res.Period)

	// 6. 分析
	res.Analysis = analysis.Analyze(res.Lines, analysis.Options{
		Type:    analysisType,
		Date:    res.Period,
		TopN:    opts.TopN,
		Rollups: next,
	})
	emit(EventProgress, 55, "分析完成", nil)

	// 7. 导出
	res.ReportPath = exporter.ReportPath(opts.ExportPath, res.Period, opts.CreateSubfolders)
	report := exporter.Report{
		Lines:    res.Lines,
		Analysis: res.Analysis,
		Rollups:  next,
		Source: exporter.Provenance{
			SalesFile:      in.SalesPath,
			PurchaseFile:   in.PurchasePath,
			HistoryLoaded:  historyLoaded,
			HistoryRecords: r.history.Len(),
			GeneratedAt:    r.now(),
		},
	}
	if err := stage(ctx, "export", func(ctx context.Context) error {
		return exporter.Save(res.ReportPath, report, exporter.ExportOptions{
			DateFormat: opts.DateFormat,
			Progress: exporter.Scaled(func(e exporter.ProgressEvent) {
				emit(EventProgress, e.Percent, e.Stage, nil)
			}, 55, 90),
		})
	}); err != nil {
		return res, err
	}
	log.Info("report written", zap.String("path", res.ReportPath))

	r.rollups = next
	res.Rollups = next.Clone()
	if r.backend != nil {
		if perr := stage(ctx, "persist_rollups", func(ctx context.Context) error {
			return r.backend.SaveRollups(ctx, r.rollups)
		}); perr != nil {
			r.persistFailed(log, res, TargetRollups, perr)
		}
	}

	// 8. 备份源文件
	reportDir := filepath.Dir(res.ReportPath)
	backups, berr := exporter.BackupSources(reportDir, res.Period, in.SalesPath, in.PurchasePath)
	res.Backups = backups
	if berr != nil {
		r.persistFailed(log, res, TargetBackup, berr)
	}

	// 9. 运行记录
	res.Duration = r.now().Sub(res.StartedAt)
	r.appendRunLog(ctx, log, r.runLog(res, in, analysisType), res)

	if opts.AutoOpen && r.opener != nil {
		if oerr := r.opener(reportDir); oerr != nil {
			log.Warn("open report dir failed", zap.String("dir", reportDir), zap.Error(oerr))
		}
	}

	emit(EventDone, 100, "计算完成", doneData(res))
	return res, nil
}

// mergePrices 合并本次采购数据并返回价格表。
// 关闭历史记忆时只使用本次采购数据，不触碰历史库。
func (r *Runner) mergePrices(ctx context.Context, log *zap.Logger, purchases []model.PurchaseRecord, res *Result) map[string]decimal.Decimal {
	hist := r.history
	if !hist.Remember() {
		hist = history.New(nil, history.WithClock(r.now))
	}
	res.Merge = hist.Merge(purchases)
	if hist == r.history && len(purchases) > 0 {
		if perr := stage(ctx, "persist_history", r.history.Persist); perr != nil {
			r.persistFailed(log, res, TargetHistory, perr)
		}
	}
	return hist.Prices()
}

func (r *Runner) persistFailed(log *zap.Logger, res *Result, target string, err error) {
	log.Warn("persist failed, result kept", zap.String("target", target), zap.Error(err))
	res.PersistFailures = append(res.PersistFailures, PersistFailure{Target: target, Err: err})
}

func (r *Runner) runLog(res *Result, in RunInput, t analysis.Type) model.RunLog {
	return model.RunLog{
		ID:           res.ID,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.StartedAt.Add(res.Duration),
		SalesFile:    filepath.Base(in.SalesPath),
		PurchaseFile: filepath.Base(in.PurchasePath),
		AnalysisType: string(t),
		Period:       res.Period.Format("2006-01-02"),
		Rows:         res.Totals.Rows,
		Products:     res.Totals.Products,
		TotalSales:   res.Totals.Sales,
		TotalCost:    res.Totals.Cost,
		TotalMargin:  res.Totals.Margin,
		ReportPath:   res.ReportPath,
		Status:       res.Status(),
	}
}

// appendRunLog 写运行记录；res 非空时失败计入 PersistFailures
func (r *Runner) appendRunLog(ctx context.Context, log *zap.Logger, entry model.RunLog, res ...*Result) {
	if r.backend == nil {
		return
	}
	if err := r.backend.AppendRunLog(ctx, entry); err != nil {
		if len(res) > 0 && res[0] != nil {
			r.persistFailed(log, res[0], TargetRunLog, err)
			return
		}
		log.Warn("append run log failed", zap.Error(err))
	}
}

func doneData(res *Result) map[string]interface{} {
	return map[string]interface{}{
		"id":          res.ID,
		"reportPath":  res.ReportPath,
		"period":      res.Period.Format("2006-01-02"),
		"rows":        res.Totals.Rows,
		"products":    res.Totals.Products,
		"totalSales":  res.Totals.Sales,
		"totalCost":   res.Totals.Cost,
		"totalMargin": res.Totals.Margin,
		"marginRate":  res.Totals.MarginRate(),
		"missing":     len(res.Missing),
		"degraded":    res.Degraded(),
		"warnings":    res.Warnings(),
	}
}

// stage 以子 span 包裹一个步骤
func stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := logger.StartSpan(ctx, name)
	err := fn(ctx)
	logger.EndSpan(span, err)
	return err
}

func emitter(progress ProgressFunc) func(typ string, percent int, msg string, data interface{}) {
	return func(typ string, percent int, msg string, data interface{}) {
		if progress == nil {
			return
		}
		progress(ProgressEvent{
			Type:      typ,
			Percent:   percent,
			Message:   msg,
			Data:      data,
			Timestamp: time.Now(),
		})
	}
}

// calendarDate 取时钟所在时区的日历日期，与销售日期一样以 UTC 零点表示
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
