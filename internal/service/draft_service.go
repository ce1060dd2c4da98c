package service

import (
	"context"
	"log/slog"

	"github.com/sekolahdigital/opr/internal/ai"
	"github.com/sekolahdigital/opr/internal/model"
)

// DraftService AI 起草服务
// 组合起草器与报告记忆库：检索相似历史报告丰富提示词，
// 但记忆库任何失败都不影响起草本身
type DraftService struct {
	drafter Drafter
	memory  *ReportMemory // 可选
}

// NewDraftService 创建起草服务
func NewDraftService(drafter Drafter, memory *ReportMemory) *DraftService {
	return &DraftService{drafter: drafter, memory: memory}
}

// Draft 为当前报告起草 Penambahbaikan 与 Refleksi
func (s *DraftService) Draft(ctx context.Context, r *model.Report) ai.DraftResult {
	req := ai.DraftRequest{
		Aktiviti:  r.Aktiviti,
		Objektif:  r.Objektif,
		Kekuatan:  r.Kekuatan,
		Kelemahan: r.Kelemahan,
	}

	if s.memory != nil {
		similar, err := s.memory.SimilarReports(ctx, req, 3)
		if err != nil {
			slog.Warn("检索相似报告失败，继续无参考起草", "error", err)
		} else {
			req.SimilarReports = similar
		}
	}

	return s.drafter.Draft(ctx, req)
}

// ApplyDraft 将起草结果写回报告的两个 AI 字段
func ApplyDraft(r *model.Report, result ai.DraftResult) {
	r.Penambahbaikan = result.Penambahbaikan
	r.Refleksi = result.Refleksi
}

// IndexSubmitted 报告提交成功后写入记忆库（尽力而为）
func (s *DraftService) IndexSubmitted(ctx context.Context, r *model.Report) {
	if s.memory == nil {
		return
	}
	if err := s.memory.IndexReport(ctx, r); err != nil {
		slog.Warn("索引已提交报告失败", "id", r.ID, "error", err)
	}
}
