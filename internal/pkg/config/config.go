package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Export  ExportConfig  `mapstructure:"export"`
	Server  ServerConfig  `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath     string `mapstructure:"db_path"`
	MemoryPath string `mapstructure:"memory_path"`
}

// AIConfig AI 配置
type AIConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// UploadConfig 上报端点配置
type UploadConfig struct {
	ScriptURL  string `mapstructure:"script_url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// ExportConfig 导出配置
type ExportConfig struct {
	OutputDir     string `mapstructure:"output_dir"`
	AttachmentDir string `mapstructure:"attachment_dir"`
	FontPath      string `mapstructure:"font_path"`
}

// ServerConfig 本地服务配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("OPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.AI.Gemini.APIKey = expandEnv(cfg.AI.Gemini.APIKey)
	cfg.Upload.ScriptURL = expandEnv(cfg.Upload.ScriptURL)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	cfg.Storage.MemoryPath = resolvePath(cfg.Storage.MemoryPath)
	cfg.Export.OutputDir = resolvePath(cfg.Export.OutputDir)
	cfg.Export.AttachmentDir = resolvePath(cfg.Export.AttachmentDir)

	return &cfg, nil
}

// Default 默认配置（与 setDefaults 保持一致）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "opr")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Storage
	v.SetDefault("storage.db_path", "./data/opr.db")
	v.SetDefault("storage.memory_path", "./data/memory")

	// AI
	v.SetDefault("ai.gemini.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("ai.gemini.model", "gemini-3-flash-preview")
	v.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")

	// Upload
	v.SetDefault("upload.timeout_sec", 60)

	// Export
	v.SetDefault("export.output_dir", "./data/eksport")
	v.SetDefault("export.attachment_dir", "./data/gambar")

	// Server
	v.SetDefault("server.port", 8321)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
