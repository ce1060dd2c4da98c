package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sekolahdigital/opr/internal/model"
)

// View 生命周期视图状态
type View string

const (
	ViewDashboard View = "dashboard"
	ViewEditing   View = "editing"
	ViewPreview   View = "preview"
)

// PreviewMode 预览模式（两者互斥）
type PreviewMode string

const (
	ModeStandard PreviewMode = "standard"
	ModePoster   PreviewMode = "poster"
)

// ErrBusy 上一个导出/上传还在进行中
var ErrBusy = errors.New("operasi sedang berjalan, sila tunggu")

// ValidationError 必填字段缺失
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "Sila lengkapkan maklumat wajib berikut: " + strings.Join(e.Missing, ", ")
}

// 用户可见提示（与浏览器版文案一致）
const (
	msgDraftSaved   = "Laporan disimpan sebagai Draft."
	msgSubmitOK     = "Laporan berjaya dihantar ke sistem!"
	msgPDFFailed    = "Gagal menjana PDF. Sila cuba lagi."
	msgSavedLocally = "Ralat Rangkaian: Laporan disimpan secara setempat, belum dihantar ke sistem."
	msgSubmitFailed = "Ralat semasa menghantar laporan."
)

// Controller 报告生命周期控制器
// 视图状态、预览模式与当前报告都由它显式持有，不依赖全局可变状态。
// 导出/上传期间由 busy 标志拒绝重入的 Save/Submit。
type Controller struct {
	store      ReportStore
	pdf        PDFRenderer
	uploader   Uploader
	notifier   Notifier
	renderSync RenderSync

	mu      sync.Mutex
	view    View
	mode    PreviewMode
	current *model.Report
	busy    bool
}

// NewController 创建生命周期控制器
// notifier / renderSync 可为 nil（分别退化为仅日志、立即就绪）
func NewController(store ReportStore, pdf PDFRenderer, uploader Uploader, notifier Notifier, renderSync RenderSync) *Controller {
	return &Controller{
		store:      store,
		pdf:        pdf,
		uploader:   uploader,
		notifier:   notifier,
		renderSync: renderSync,
		view:       ViewDashboard,
		mode:       ModeStandard,
	}
}

// View 当前视图状态
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Mode 当前预览模式
func (c *Controller) Mode() PreviewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Current 当前报告的副本（未在编辑/预览时返回 nil）
func (c *Controller) Current() *model.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// CreateNew 开始一份新报告：Dashboard → Editing
// 分配新标识符，状态 Draft，创建时间取当前时刻
func (c *Controller) CreateNew() *model.Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := model.NewReport()
	c.current = r
	c.view = ViewEditing
	c.mode = ModeStandard
	return r.Clone()
}

// Apply 编辑当前报告（表单字段原地修改）
// 日期字段经由 ApplyTarikh 同步派生的星期名
func (c *Controller) Apply(edit func(r *model.Report)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || (c.view != ViewEditing && c.view != ViewPreview) {
		return fmt.Errorf("tiada laporan sedang diedit")
	}
	edit(c.current)
	return nil
}

// Preview 请求预览：Editing → Preview(Standard)
// 必填校验不通过时维持 Editing 并返回缺失字段
func (c *Controller) Preview() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != ViewEditing || c.current == nil {
		return fmt.Errorf("pratonton hanya boleh dari borang")
	}
	if missing := ValidateForPreview(c.current); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	c.view = ViewPreview
	c.mode = ModeStandard
	return nil
}

// ViewReport 从仪表盘查看已存报告：Dashboard → Preview(Standard)
// 已入库的报告视为有效，不再校验
func (c *Controller) ViewReport(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("laporan %s tidak ditemui", id)
	}
	c.current = r
	c.view = ViewPreview
	c.mode = ModeStandard
	return nil
}

// BackToEdit 预览返回编辑
func (c *Controller) BackToEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != ViewPreview {
		return fmt.Errorf("bukan dalam pratonton")
	}
	c.view = ViewEditing
	return nil
}

// SetMode 切换预览模式（不校验、不落库）
func (c *Controller) SetMode(mode PreviewMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != ViewPreview {
		return fmt.Errorf("bukan dalam pratonton")
	}
	if mode != ModeStandard && mode != ModePoster {
		return fmt.Errorf("mod pratonton tidak sah: %s", mode)
	}
	c.mode = mode
	return nil
}

// Save 保存当前报告（Editing 或 Preview 均可）
// 状态保持不变，视图状态不变
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil || (c.view != ViewEditing && c.view != ViewPreview) {
		c.mu.Unlock()
		return fmt.Errorf("tiada laporan untuk disimpan")
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	report := c.current.Clone()
	c.mu.Unlock()

	defer c.clearBusy()

	if err := c.store.Upsert(ctx, report); err != nil {
		return err
	}
	c.notify(msgDraftSaved)
	return nil
}

// Submit 提交当前报告（仅 Preview）
// 海报模式先临时切回标准版面并等待渲染稳定，再导出 PDF 并上传。
// 上传成功：置 Submitted、入库、回到 Dashboard；
// 任何失败：状态与视图不变，恢复原模式，报告以 Draft 落地本地。
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.view != ViewPreview || c.current == nil {
		c.mu.Unlock()
		return fmt.Errorf("hantar hanya boleh dari pratonton")
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	wasPoster := c.mode == ModePoster
	if wasPoster {
		c.mode = ModeStandard
	}
	report := c.current.Clone()
	c.mu.Unlock()

	defer c.clearBusy()

	restoreMode := func() {
		if wasPoster {
			c.mu.Lock()
			if c.view == ViewPreview {
				c.mode = ModePoster
			}
			c.mu.Unlock()
		}
	}

	// PDF 必须从标准版面截取，等待渲染稳定信号
	if wasPoster && c.renderSync != nil {
		if err := c.renderSync.WaitSettled(ctx, ModeStandard); err != nil {
			restoreMode()
			c.notify(msgPDFFailed)
			return fmt.Errorf("menunggu pratonton stabil: %w", err)
		}
	}

	pdfDataURI, err := c.pdf.RenderStandard(ctx, report)
	if err != nil {
		restoreMode()
		c.notify(msgPDFFailed)
		return fmt.Errorf("menjana PDF gagal: %w", err)
	}

	if err := c.uploader.Upload(ctx, report, pdfDataURI); err != nil {
		// 网络失败降级为仅本地保存：状态保持 Draft，停留在预览
		if saveErr := c.store.Upsert(ctx, report); saveErr != nil {
			slog.Error("simpanan setempat selepas kegagalan muat naik turut gagal", "id", report.ID, "error", saveErr)
		}
		restoreMode()
		c.notify(msgSavedLocally)
		return fmt.Errorf("muat naik gagal: %w", err)
	}

	// 传输层无错即视为成功（端点响应不可机读）
	report.Status = model.StatusSubmitted
	if err := c.store.Upsert(ctx, report); err != nil {
		restoreMode()
		c.notify(msgSubmitFailed)
		return fmt.Errorf("simpan selepas hantar gagal: %w", err)
	}

	c.mu.Lock()
	c.current = report
	c.view = ViewDashboard
	c.mode = ModeStandard
	c.mu.Unlock()

	c.notify(msgSubmitOK)
	return nil
}

// Stats 仪表盘统计（每次展示时由存储内容重新计算）
func (c *Controller) Stats(ctx context.Context) (model.DashboardStats, error) {
	reports, err := c.store.ListAll(ctx)
	if err != nil {
		return model.DashboardStats{}, err
	}
	return ComputeStats(reports), nil
}

// BackToDashboard 返回仪表盘（放弃未保存的编辑）
func (c *Controller) BackToDashboard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = ViewDashboard
	c.mode = ModeStandard
	c.current = nil
}

func (c *Controller) clearBusy() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) notify(msg string) {
	if c.notifier != nil {
		c.notifier.Notify(msg)
		return
	}
	slog.Info("notis", "msg", msg)
}
