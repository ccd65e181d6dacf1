package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"marginanalyzer/internal/config"
	"marginanalyzer/internal/history"
	"marginanalyzer/internal/logger"
	"marginanalyzer/internal/parser"
	"marginanalyzer/internal/pipeline"
	"marginanalyzer/internal/service/excel"
	"marginanalyzer/internal/store"
	"marginanalyzer/internal/util"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

// app 各子命令共用的运行环境
type app struct {
	cfg      *config.AppConfig
	info     config.LoadConfigInfo
	baseDir  string
	dataDir  string
	logger   *zap.Logger
	backend  store.Backend
	runner   *pipeline.Runner
	shutdown logger.ShutdownFunc
}

type bootstrapOptions struct {
	configPath string
	dataDir    string
	devMode    bool
}

func bootstrap(ctx context.Context, opts bootstrapOptions) (*app, error) {
	cfg, info, err := config.LoadConfigWithInfo(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败，使用默认配置: %v\n", err)
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{Path: opts.configPath}
	}
	if opts.dataDir != "" {
		cfg.Data.DataDir = opts.dataDir
	}
	if opts.devMode {
		cfg.Server.DevMode = true
	}

	a := &app{cfg: cfg, info: info, baseDir: config.BaseDir(info)}
	a.logger = logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment: cfg.Server.DevMode,
		Encoding:      cfg.Log.Encoding,
		Level:         cfg.Log.Level,
	})

	if cfg.Log.Tracing {
		shutdown, err := logger.InitTracer(os.Stderr, version)
		if err != nil {
			a.logger.Warn("init tracer failed, tracing disabled", zap.Error(err))
		} else {
			a.shutdown = shutdown
		}
	}

	a.dataDir, err = config.EnsureDataDir(cfg, a.baseDir)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	synonyms, err := parser.LoadSynonyms(config.SynonymsPath(cfg, a.dataDir))
	if err != nil {
		a.logger.Warn("load synonyms failed, using built-in table", zap.Error(err))
		synonyms = parser.DefaultSynonyms()
	}

	a.backend, err = store.Open(cfg.Data.Storage, a.dataDir)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}

	hist := history.New(a.backend,
		history.WithLogger(a.logger),
		history.WithRemember(cfg.History.Remember))
	a.runner = pipeline.NewRunner(hist, a.backend, pipeline.OptionsFromConfig(cfg, a.baseDir),
		pipeline.WithLogger(a.logger),
		pipeline.WithReader(excel.NewReader(parser.NewFieldMapper(synonyms))),
		pipeline.WithOpener(util.OpenPath))
	a.runner.LoadState(ctx)

	a.logger.Debug("bootstrap done",
		zap.String("config", info.Path),
		zap.String("data_dir", a.dataDir),
		zap.String("storage", cfg.Data.Storage))
	return a, nil
}

func (a *app) close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("close storage failed", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
