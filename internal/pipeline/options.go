package pipeline

import "marginanalyzer/internal/config"

// OptionsFromConfig 由配置生成运行参数，相对导出路径按 baseDir 解析
func OptionsFromConfig(cfg *config.AppConfig, baseDir string) Options {
	return Options{
		ExportPath:       config.ExportDir(cfg, baseDir),
		CreateSubfolders: cfg.Export.CreateSubfolders,
		DateFormat:       cfg.Export.DateFormat,
		TopN:             cfg.Export.TopN,
		AutoOpen:         cfg.Export.AutoOpen,
	}
}
