package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Data    DataConfig    `toml:"data" json:"data"`
	Export  ExportConfig  `toml:"export" json:"export"`
	History HistoryConfig `toml:"history" json:"history"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         int      `toml:"port" json:"port" validate:"min=0,max=65535"`
	DevMode      bool     `toml:"dev_mode" json:"devMode"`
	AllowOrigins []string `toml:"allow_origins" json:"allowOrigins"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir      string `toml:"data_dir" json:"dataDir" validate:"required"`
	Storage      string `toml:"storage" json:"storage" validate:"oneof=json sqlite"`
	SynonymsFile string `toml:"synonyms_file" json:"synonymsFile"`
}

// ExportConfig 报表导出配置
type ExportConfig struct {
	Path             string `toml:"path" json:"path" validate:"required"`
	AutoOpen         bool   `toml:"auto_open" json:"autoOpen"`
	CreateSubfolders bool   `toml:"create_subfolders" json:"createSubfolders"`
	DateFormat       string `toml:"date_format" json:"dateFormat" validate:"required"`
	TopN             int    `toml:"top_n" json:"topN" validate:"min=1,max=1000"`
	AnalysisType     string `toml:"analysis_type" json:"analysisType" validate:"oneof=daily monthly yearly"`
}

// HistoryConfig 历史采购库配置
type HistoryConfig struct {
	Remember bool `toml:"remember" json:"remember"`
}

// LogConfig 日志与追踪配置
type LogConfig struct {
	Level    string `toml:"level" json:"level" validate:"oneof=debug info warn error"`
	Encoding string `toml:"encoding" json:"encoding" validate:"oneof=json console"`
	Tracing  bool   `toml:"tracing" json:"tracing"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	PortSpecified bool
	FromFile      bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir:      "data",
			Storage:      "json",
			SynonymsFile: "synonyms.yaml",
		},
		Export: ExportConfig{
			Path:             "exports",
			AutoOpen:         false,
			CreateSubfolders: true,
			DateFormat:       "yyyy-mm-dd",
			TopN:             20,
			AnalysisType:     "daily",
		},
		History: HistoryConfig{
			Remember: true,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

var validate = validator.New()

// Validate 校验配置取值
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s=%v (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// DefaultPath 默认配置文件位置：可执行文件同目录下的 config.toml
func DefaultPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, "config.toml")
}

// LoadConfigWithInfo 从 config.toml 加载配置并返回元信息。
// path 为空时使用 DefaultPath；加载顺序：默认值 -> config.toml -> .env -> MARGIN_* 环境变量。
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.FromFile = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	// .env 可选：配置文件同目录优先，其次当前目录
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	if applyEnv(config) {
		if _, ok := os.LookupEnv(EnvPrefix + "PORT"); ok {
			info.PortSpecified = true
		}
	}

	if err := config.Validate(); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// LoadConfig 从默认位置加载配置
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// EnvPrefix 环境变量前缀
const EnvPrefix = "MARGIN_"

// applyEnv 环境变量覆盖，返回是否有任何覆盖
func applyEnv(c *AppConfig) bool {
	applied := false
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
			applied = true
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
				applied = true
			}
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
				applied = true
			}
		}
	}

	integer("PORT", &c.Server.Port)
	boolean("DEV_MODE", &c.Server.DevMode)
	str("DATA_DIR", &c.Data.DataDir)
	str("STORAGE", &c.Data.Storage)
	str("EXPORT_PATH", &c.Export.Path)
	boolean("AUTO_OPEN", &c.Export.AutoOpen)
	boolean("CREATE_SUBFOLDERS", &c.Export.CreateSubfolders)
	str("ANALYSIS_TYPE", &c.Export.AnalysisType)
	integer("TOP_N", &c.Export.TopN)
	boolean("REMEMBER_HISTORY", &c.History.Remember)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_ENCODING", &c.Log.Encoding)
	boolean("TRACING", &c.Log.Tracing)
	return applied
}

// SaveConfig 保存配置到 path（为空时使用 DefaultPath）
func SaveConfig(path string, config *AppConfig) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// resolve 相对路径按 base 目录解析
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// BaseDir 相对路径的基准目录（配置文件所在目录）
func BaseDir(info LoadConfigInfo) string {
	if info.Path == "" {
		return filepath.Dir(DefaultPath())
	}
	return filepath.Dir(info.Path)
}

// EnsureDataDir 确保数据目录存在，返回绝对路径
func EnsureDataDir(config *AppConfig, base string) (string, error) {
	dataDir := resolve(base, config.Data.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	// 上传文件暂存目录
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// ExportDir 报表导出根目录
func ExportDir(config *AppConfig, base string) string {
	return resolve(base, config.Export.Path)
}

// SynonymsPath 同义词表覆盖文件路径（相对数据目录）
func SynonymsPath(config *AppConfig, dataDir string) string {
	if config.Data.SynonymsFile == "" {
		return ""
	}
	return resolve(dataDir, config.Data.SynonymsFile)
}
