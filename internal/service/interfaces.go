package service

import (
	"context"

	"github.com/sekolahdigital/opr/internal/ai"
	"github.com/sekolahdigital/opr/internal/model"
)

// 仓储/外部协作方的最小接口集合（ISP）

// ReportStore 本地报告存储
type ReportStore interface {
	Upsert(ctx context.Context, report *model.Report) error
	ListAll(ctx context.Context) ([]model.Report, error)
	GetByID(ctx context.Context, id string) (*model.Report, error)
}

// PDFRenderer 标准一页版面的 PDF 渲染器
// 返回 data:application/pdf;base64 形式的 data URI，恰好一页，超出裁切
type PDFRenderer interface {
	RenderStandard(ctx context.Context, report *model.Report) (string, error)
}

// PosterRenderer 海报版面的 PNG 渲染器
type PosterRenderer interface {
	RenderPoster(ctx context.Context, report *model.Report, transparent bool) ([]byte, error)
}

// Uploader 远端上传端点
// 响应体不可机读：传输层无错即视为成功
type Uploader interface {
	Upload(ctx context.Context, report *model.Report, pdfDataURI string) error
}

// Drafter AI 起草服务
// 任何失败都必须降级为固定占位文案，绝不阻塞调用方
type Drafter interface {
	Draft(ctx context.Context, req ai.DraftRequest) ai.DraftResult
}

// Notifier 用户可见的提示通道（toast）
type Notifier interface {
	Notify(msg string)
}

// RenderSync 预览渲染稳定信号
// 海报切回标准版面后必须等渲染稳定才能截取；
// 这里用显式完成信号替代原实现的固定延时
type RenderSync interface {
	WaitSettled(ctx context.Context, mode PreviewMode) error
}
