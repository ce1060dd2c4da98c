package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sekolahdigital/opr/internal/ai"
	"github.com/sekolahdigital/opr/internal/eventbus"
	"github.com/sekolahdigital/opr/internal/export"
	"github.com/sekolahdigital/opr/internal/pkg/config"
	"github.com/sekolahdigital/opr/internal/repository"
	"github.com/sekolahdigital/opr/internal/service"
	"github.com/sekolahdigital/opr/internal/upload"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg  *config.Config
	DB   *repository.Database
	Hub  *eventbus.Hub
	Gate *eventbus.RenderGate

	Store *repository.ReportStore

	Services struct {
		Lifecycle *service.Controller
		Drafts    *service.DraftService
		Memory    *service.ReportMemory
	}

	Exporters struct {
		PDF         *export.StandardPDF
		Poster      *export.Poster
		Excel       *export.ExcelArchive
		Attachments *export.Attachments
	}

	Clients struct {
		Gemini *ai.GeminiClient
		Script *upload.ScriptClient
	}
}

// NewCore 构建核心依赖
func NewCore(ctx context.Context, cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	c.Store = repository.NewReportStore(db.DB)

	// Clients
	c.Clients.Gemini, err = ai.NewGeminiClient(ctx, &ai.GeminiConfig{
		APIKey:         cfg.AI.Gemini.APIKey,
		Model:          cfg.AI.Gemini.Model,
		EmbeddingModel: cfg.AI.Gemini.EmbeddingModel,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化 Gemini 客户端失败: %w", err)
	}
	c.Clients.Script = upload.NewScriptClient(&upload.ScriptConfig{
		ScriptURL: cfg.Upload.ScriptURL,
		Timeout:   time.Duration(cfg.Upload.TimeoutSec) * time.Second,
	})

	// Exporters
	c.Exporters.PDF = export.NewStandardPDF()
	c.Exporters.Poster = export.NewPoster(cfg.Export.FontPath)
	c.Exporters.Excel = export.NewExcelArchive()
	c.Exporters.Attachments, err = export.NewAttachments(cfg.Export.AttachmentDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化附件目录失败: %w", err)
	}

	// Services
	drafter := ai.NewOPRDrafter(c.Clients.Gemini)
	if c.Clients.Gemini.IsConfigured() {
		memory, err := service.NewReportMemory(c.Clients.Gemini, &service.ReportMemoryConfig{
			StoragePath: cfg.Storage.MemoryPath,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("初始化报告记忆库失败: %w", err)
		}
		c.Services.Memory = memory
	}
	c.Services.Drafts = service.NewDraftService(drafter, c.Services.Memory)
	c.Gate = eventbus.NewRenderGate(c.Hub)
	c.Services.Lifecycle = service.NewController(
		c.Store,
		c.Exporters.PDF,
		c.Clients.Script,
		eventbus.NewToastNotifier(c.Hub),
		c.Gate,
	)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// RequireAIConfigured 检查 AI 是否已配置
func (c *Core) RequireAIConfigured() error {
	if c.Clients.Gemini == nil || !c.Clients.Gemini.IsConfigured() {
		return fmt.Errorf("Gemini API 未配置")
	}
	return nil
}

// RequireUploadConfigured 检查上报端点是否已配置
func (c *Core) RequireUploadConfigured() error {
	if c.Clients.Script == nil || !c.Clients.Script.IsConfigured() {
		return fmt.Errorf("URL Google Script 未配置")
	}
	return nil
}
