package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marginanalyzer/internal/analysis"
	"marginanalyzer/internal/api"
	"marginanalyzer/internal/exporter"
	"marginanalyzer/internal/model"
	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/pipeline"
	"marginanalyzer/internal/server"
)

const usage = `销售毛利分析

用法:
  marginanalyzer [serve] [-port N] [-dev] [-dataDir DIR]
  marginanalyzer calc -sales FILE [-purchase FILE] [-type daily|monthly|yearly]
  marginanalyzer check -file FILE [-schema sales|purchase_latest|purchase_history]
  marginanalyzer history load -file FILE
  marginanalyzer history merge -file FILE
  marginanalyzer history search [-keyword KW]
  marginanalyzer history export -out FILE
  marginanalyzer history clear
  marginanalyzer rollups [-reset]
  marginanalyzer templates [-dir DIR]

通用参数: -config FILE (默认为可执行文件同目录的 config.toml)
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "calc":
		err = runCalc(args)
	case "check":
		err = runCheck(args)
	case "history":
		err = runHistory(args)
	case "rollups":
		err = runRollups(args)
	case "templates":
		err = runTemplates(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet 创建带通用参数的子命令 FlagSet
func newFlagSet(name string) (*flag.FlagSet, *bootstrapOptions) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	opts := &bootstrapOptions{}
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径")
	fs.StringVar(&opts.dataDir, "dataDir", "", "数据目录 (覆盖配置文件)")
	return fs, opts
}

func runServe(args []string) error {
	fs, opts := newFlagSet("serve")
	port := fs.Int("port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	fs.BoolVar(&opts.devMode, "dev", false, "开发模式")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, *opts)
	if err != nil {
		return err
	}
	defer a.close()

	if *port > 0 && !a.info.PortSpecified {
		a.cfg.Server.Port = *port
	}

	srv := server.NewServer(api.Deps{
		Runner:     a.runner,
		Config:     a.cfg,
		ConfigPath: a.info.Path,
		BaseDir:    a.baseDir,
		UploadDir:  filepath.Join(a.dataDir, "uploads"),
		Storage:    a.cfg.Data.Storage,
		Version:    version,
		Logger:     a.logger,
	}, a.cfg.Server.DevMode, a.cfg.Server.AllowOrigins)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(addr)
	}()

	fmt.Printf("数据目录: %s\n", a.dataDir)
	fmt.Printf("服务已启动: http://localhost:%d/api/status\n", a.cfg.Server.Port)
	fmt.Println("按 Ctrl+C 停止服务...")

	// 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	fmt.Println("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutdown failed", zap.Error(err))
	}
	return nil
}

func runCalc(args []string) error {
	fs, opts := newFlagSet("calc")
	sales := fs.String("sales", "", "销售数据文件 (xlsx/csv)")
	purchase := fs.String("purchase", "", "最新采购数据文件 (可选)")
	typ := fs.String("type", "", "分析类型 daily|monthly|yearly (默认取配置)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sales == "" {
		return errors.New("缺少 -sales 参数")
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, *opts)
	if err != nil {
		return err
	}
	defer a.close()

	if *typ == "" {
		*typ = a.cfg.Export.AnalysisType
	}
	analysisType, err := analysis.ParseType(*typ)
	if err != nil {
		return err
	}

	res, err := a.runner.Run(ctx, pipeline.RunInput{
		SalesPath:    *sales,
		PurchasePath: *purchase,
		AnalysisType: analysisType,
		Progress: func(e pipeline.ProgressEvent) {
			if e.Type == pipeline.EventWarning {
				fmt.Printf("[%3d%%] 警告: %s\n", e.Percent, e.Message)
			}
		},
	})
	if err != nil {
		return err
	}

	t := res.Totals
	fmt.Printf("数据日期:   %s (%s)\n", res.Period.Format("2006-01-02"), analysisType.Label())
	fmt.Printf("明细行数:   %d, 商品种类: %d\n", t.Rows, t.Products)
	fmt.Printf("销售总额:   %s\n", t.Sales.StringFixed(2))
	fmt.Printf("采购成本:   %s\n", t.Cost.StringFixed(2))
	fmt.Printf("毛利:       %s (%s%%)\n", t.Margin.StringFixed(2), t.MarginRate().StringFixed(2))
	if len(res.Missing) > 0 {
		fmt.Printf("缺少采购价: %s\n", strings.Join(res.Missing, ", "))
	}
	fmt.Printf("报表:       %s\n", res.ReportPath)
	for _, w := range res.Warnings() {
		fmt.Printf("保存失败:   %s\n", w)
	}
	return nil
}

func runCheck(args []string) error {
	fs, opts := newFlagSet("check")
	file := fs.String("file", "", "待检查的文件")
	schema := fs.String("schema", string(parser.SchemaSales), "表结构 sales|purchase_latest|purchase_history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("缺少 -file 参数")
	}

	a, err := bootstrap(context.Background(), *opts)
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.runner.Check(*file, parser.Schema(*schema))
	if err != nil {
		return err
	}
	fmt.Printf("文件: %s  Sheet: %s  数据行: %d  商品: %d\n", rep.File, rep.Sheet, rep.Rows, rep.Products)
	for _, m := range rep.Mapping.Mapped {
		fmt.Printf("  %s <- %s\n", m.Field, m.ColumnName)
	}
	if len(rep.Missing) > 0 {
		return fmt.Errorf("缺少必要列: %s", strings.Join(rep.Missing, ", "))
	}
	if rep.DataErr != "" {
		return errors.New(rep.DataErr)
	}
	fmt.Println("格式检查通过")
	return nil
}

func runHistory(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("缺少子命令 (load|merge|search|export|clear)\n\n%s", usage)
	}
	sub, args := args[0], args[1:]

	fs, opts := newFlagSet("history " + sub)
	file := fs.String("file", "", "输入文件")
	keyword := fs.String("keyword", "", "按编码或名称查找")
	out := fs.String("out", "", "导出文件路径")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, *opts)
	if err != nil {
		return err
	}
	defer a.close()

	switch sub {
	case "load":
		if *file == "" {
			return errors.New("缺少 -file 参数")
		}
		n, err := a.runner.LoadHistoryFile(ctx, *file)
		if err != nil {
			return err
		}
		fmt.Printf("已导入 %d 个商品的历史采购价\n", n)
	case "merge":
		if *file == "" {
			return errors.New("缺少 -file 参数")
		}
		res, failures, err := a.runner.MergeHistoryFile(ctx, *file)
		if err != nil {
			return err
		}
		fmt.Printf("新增 %d, 价格变化 %d, 刷新 %d, 跳过 %d, 共 %d\n", res.Added, res.Updated, res.Refreshed, res.Skipped, res.Total)
		for _, f := range failures {
			fmt.Printf("保存失败: %s\n", f.Error())
		}
	case "search":
		printHistory(a.runner.HistoryRecords(*keyword))
	case "export":
		if *out == "" {
			return errors.New("缺少 -out 参数")
		}
		n, err := a.runner.ExportHistory(*out)
		if err != nil {
			return err
		}
		fmt.Printf("已导出 %d 条记录到 %s\n", n, *out)
	case "clear":
		if err := a.runner.ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Println("历史采购数据已清空")
	default:
		return fmt.Errorf("未知子命令: history %s", sub)
	}
	return nil
}

func printHistory(records []model.PurchaseRecord) {
	for _, r := range records {
		fmt.Printf("%-16s %-20s %12s  %s\n", r.ProductCode, r.ProductName, r.Price.StringFixed(2), r.RecordedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("共 %d 条\n", len(records))
}

func runRollups(args []string) error {
	fs, opts := newFlagSet("rollups")
	reset := fs.Bool("reset", false, "清空月度 / 年度累计数据")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, *opts)
	if err != nil {
		return err
	}
	defer a.close()

	if *reset {
		if err := a.runner.ResetRollups(ctx); err != nil {
			return err
		}
		fmt.Println("累计数据已清空")
		return nil
	}

	r := a.runner.Rollups()
	for _, kind := range []model.PeriodKind{model.PeriodMonthly, model.PeriodYearly} {
		title := "月度累计"
		if kind == model.PeriodYearly {
			title = "年度累计"
		}
		fmt.Println(title)
		for _, b := range r.Sorted(kind) {
			fmt.Printf("  %-8s 销售 %14s  成本 %14s  毛利 %14s  毛利率 %6s%%  商品 %d  次数 %d\n",
				b.Period, b.TotalSales.StringFixed(2), b.TotalCost.StringFixed(2), b.TotalMargin.StringFixed(2),
				b.MarginRate.StringFixed(2), b.ProductCount, b.Runs)
		}
	}
	return nil
}

func runTemplates(args []string) error {
	fs := flag.NewFlagSet("templates", flag.ContinueOnError)
	dir := fs.String("dir", ".", "模板输出目录")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths, err := exporter.WriteTemplates(*dir, time.Now())
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
