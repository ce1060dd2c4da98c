package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/sekolahdigital/opr/internal/ai"
	"github.com/sekolahdigital/opr/internal/model"
)

// ReportMemory 报告记忆库
// 已提交的报告入向量库，起草时检索相似的历史报告作为提示词参考
type ReportMemory struct {
	db          *chromem.DB
	collection  *chromem.Collection
	gemini      *ai.GeminiClient
	storagePath string
}

// ReportMemoryConfig 配置
type ReportMemoryConfig struct {
	StoragePath string // 向量数据库存储路径
}

// NewReportMemory 创建报告记忆库
func NewReportMemory(gemini *ai.GeminiClient, cfg *ReportMemoryConfig) (*ReportMemory, error) {
	if cfg == nil {
		cfg = &ReportMemoryConfig{}
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data/memori"
	}

	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("创建记忆库目录失败: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.StoragePath, false)
	if err != nil {
		return nil, fmt.Errorf("创建向量数据库失败: %w", err)
	}

	collection, err := db.GetOrCreateCollection("laporan", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 collection 失败: %w", err)
	}

	return &ReportMemory{
		db:          db,
		collection:  collection,
		gemini:      gemini,
		storagePath: cfg.StoragePath,
	}, nil
}

// IndexReport 索引一份已提交的报告
func (m *ReportMemory) IndexReport(ctx context.Context, r *model.Report) error {
	if !m.gemini.IsConfigured() {
		slog.Debug("Gemini 未配置，跳过索引")
		return nil
	}
	if r == nil || r.ID == "" {
		return fmt.Errorf("报告不完整，无法索引")
	}

	content := fmt.Sprintf("Tajuk: %s\nUnit: %s\nObjektif: %s\nAktiviti: %s\nRefleksi: %s",
		r.TajukProgram, r.Unit, r.Objektif, r.Aktiviti, r.Refleksi)

	embedding, err := m.gemini.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("生成嵌入失败: %w", err)
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("laporan_%s", r.ID),
		Content:   content,
		Embedding: embedding,
		Metadata: map[string]string{
			"unit":   string(r.Unit),
			"tarikh": r.Tarikh,
			"tajuk":  r.TajukProgram,
		},
	}

	if err := m.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("添加文档失败: %w", err)
	}

	slog.Debug("索引报告", "id", r.ID, "tajuk", r.TajukProgram)
	return nil
}

// SimilarReports 检索与当前起草内容相似的历史报告摘要
func (m *ReportMemory) SimilarReports(ctx context.Context, req ai.DraftRequest, topK int) ([]string, error) {
	if !m.gemini.IsConfigured() {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	if count := m.collection.Count(); count < topK {
		if count == 0 {
			return nil, nil
		}
		topK = count
	}

	query := strings.TrimSpace(req.Aktiviti + "\n" + req.Objektif)
	if query == "" {
		return nil, nil
	}

	queryEmb, err := m.gemini.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}

	results, err := m.collection.QueryEmbedding(ctx, queryEmb, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("向量搜索失败: %w", err)
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, fmt.Sprintf("%s (%s, %s)", r.Metadata["tajuk"], r.Metadata["unit"], r.Metadata["tarikh"]))
	}
	return out, nil
}
