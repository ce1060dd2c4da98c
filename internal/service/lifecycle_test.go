package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sekolahdigital/opr/internal/model"
)

// ===== Mock Implementations =====

type fakeStore struct {
	mu      sync.Mutex
	reports []model.Report
	failPut bool
}

func (f *fakeStore) Upsert(ctx context.Context, report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return errors.New("quota exceeded")
	}
	for i, existing := range f.reports {
		if existing.ID == report.ID {
			f.reports[i] = *report.Clone()
			return nil
		}
	}
	f.reports = append([]model.Report{*report.Clone()}, f.reports...)
	return nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Report(nil), f.reports...), nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

type fakePDF struct {
	fail    bool
	renders int
}

func (f *fakePDF) RenderStandard(ctx context.Context, report *model.Report) (string, error) {
	f.renders++
	if f.fail {
		return "", errors.New("rasterizer exploded")
	}
	return "data:application/pdf;base64,QUJDRA==", nil
}

type fakeUploader struct {
	fail     bool
	uploaded int
	lastPDF  string
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeUploader) Upload(ctx context.Context, report *model.Report, pdfDataURI string) error {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.fail {
		return errors.New("network unreachable")
	}
	f.uploaded++
	f.lastPDF = pdfDataURI
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return ""
	}
	return f.msgs[len(f.msgs)-1]
}

type fakeRenderSync struct {
	waits int
}

func (f *fakeRenderSync) WaitSettled(ctx context.Context, mode PreviewMode) error {
	f.waits++
	return nil
}

func newTestController() (*Controller, *fakeStore, *fakePDF, *fakeUploader, *fakeNotifier, *fakeRenderSync) {
	store := &fakeStore{}
	pdf := &fakePDF{}
	up := &fakeUploader{}
	notifier := &fakeNotifier{}
	rsync := &fakeRenderSync{}
	return NewController(store, pdf, up, notifier, rsync), store, pdf, up, notifier, rsync
}

func fillMandatory(r *model.Report) {
	r.Unit = model.UnitKurikulum
	r.TajukProgram = "Hari Guru"
	ApplyTarikh(r, "2024-05-16")
	r.DisediakanOleh = "Aminah"
}

// ===== Tests =====

func TestPreviewGatedByValidation(t *testing.T) {
	c, _, _, _, _, _ := newTestController()
	c.CreateNew()
	_ = c.Apply(func(r *model.Report) { r.Tarikh = "" })

	err := c.Preview()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v, want ValidationError", err)
	}
	if c.View() != ViewEditing {
		t.Fatalf("view=%s, want editing kept on failed validation", c.View())
	}
	for _, want := range []string{FieldUnit, FieldTajukProgram, FieldTarikh, FieldDisediakanOleh} {
		found := false
		for _, m := range verr.Missing {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing list %v lacks %s", verr.Missing, want)
		}
	}

	_ = c.Apply(fillMandatory)
	if err := c.Preview(); err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	if c.View() != ViewPreview || c.Mode() != ModeStandard {
		t.Fatalf("view=%s mode=%s, want preview/standard", c.View(), c.Mode())
	}
}

// 场景：新建 → 校验通过 → 保存 → 库中 1 条 Draft，统计正确
func TestCreateValidateSaveScenario(t *testing.T) {
	c, store, _, _, notifier, _ := newTestController()
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)

	if missing := ValidateForPreview(c.Current()); len(missing) != 0 {
		t.Fatalf("missing=%v, want empty", missing)
	}

	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(store.reports) != 1 {
		t.Fatalf("store has %d reports, want 1", len(store.reports))
	}
	if store.reports[0].Status != model.StatusDraft {
		t.Fatalf("status=%s, want Draft", store.reports[0].Status)
	}
	if store.reports[0].Hari != "Khamis" {
		t.Fatalf("hari=%q, want Khamis", store.reports[0].Hari)
	}
	if notifier.last() != msgDraftSaved {
		t.Fatalf("toast=%q, want %q", notifier.last(), msgDraftSaved)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalReports != 1 || stats.ByUnit[model.UnitKurikulum] != 1 {
		t.Fatalf("stats=%+v", stats)
	}
}

func TestSubmitSuccess(t *testing.T) {
	c, store, _, up, notifier, _ := newTestController()
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)
	if err := c.Preview(); err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if up.uploaded != 1 {
		t.Fatalf("uploaded=%d, want 1", up.uploaded)
	}
	if !strings.HasPrefix(up.lastPDF, "data:application/pdf;base64,") {
		t.Fatalf("pdf=%q, want data URI", up.lastPDF)
	}
	if store.reports[0].Status != model.StatusSubmitted {
		t.Fatalf("status=%s, want Submitted", store.reports[0].Status)
	}
	if c.View() != ViewDashboard {
		t.Fatalf("view=%s, want dashboard after submit", c.View())
	}
	if notifier.last() != msgSubmitOK {
		t.Fatalf("toast=%q, want %q", notifier.last(), msgSubmitOK)
	}
}

// 场景：上传网络失败 → 状态仍 Draft，本地保留提交前版本，提示“已本地保存”
func TestSubmitUploadFailureFallsBackToLocalSave(t *testing.T) {
	c, store, _, up, notifier, _ := newTestController()
	up.fail = true
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)
	_ = c.Preview()

	err := c.Submit(ctx)
	if err == nil {
		t.Fatal("Submit must surface the upload error")
	}

	if len(store.reports) != 1 {
		t.Fatalf("store has %d reports, want 1 (local fallback)", len(store.reports))
	}
	if store.reports[0].Status != model.StatusDraft {
		t.Fatalf("status=%s, want Draft preserved on failure", store.reports[0].Status)
	}
	if c.View() != ViewPreview {
		t.Fatalf("view=%s, want preview kept on failure", c.View())
	}
	if notifier.last() != msgSavedLocally {
		t.Fatalf("toast=%q, want %q", notifier.last(), msgSavedLocally)
	}
}

func TestSubmitFromPosterForcesStandardAndRestores(t *testing.T) {
	c, _, pdf, up, _, rsync := newTestController()
	up.fail = true
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)
	_ = c.Preview()
	if err := c.SetMode(ModePoster); err != nil {
		t.Fatalf("SetMode error: %v", err)
	}

	_ = c.Submit(ctx)

	if rsync.waits != 1 {
		t.Fatalf("waits=%d, want 1 render-settled wait before capture", rsync.waits)
	}
	if pdf.renders != 1 {
		t.Fatalf("renders=%d, want 1", pdf.renders)
	}
	// 失败后恢复海报模式
	if c.Mode() != ModePoster {
		t.Fatalf("mode=%s, want poster restored after failed submit", c.Mode())
	}

	// 成功提交则回仪表盘，模式复位
	up.fail = false
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if c.View() != ViewDashboard || c.Mode() != ModeStandard {
		t.Fatalf("view=%s mode=%s, want dashboard/standard", c.View(), c.Mode())
	}
}

func TestSubmitRejectedOutsidePreview(t *testing.T) {
	c, _, _, up, _, _ := newTestController()
	ctx := context.Background()

	c.CreateNew()
	if err := c.Submit(ctx); err == nil {
		t.Fatal("Submit from editing must fail")
	}
	if up.uploaded != 0 {
		t.Fatalf("uploaded=%d, want 0", up.uploaded)
	}
}

func TestBusyFlagRejectsReentrantActions(t *testing.T) {
	c, _, _, up, _, _ := newTestController()
	up.started = make(chan struct{})
	up.release = make(chan struct{})
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)
	_ = c.Preview()

	done := make(chan error, 1)
	go func() { done <- c.Submit(ctx) }()

	<-up.started
	if err := c.Save(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("Save during submit: err=%v, want ErrBusy", err)
	}
	if err := c.Submit(ctx); !errors.Is(err, ErrBusy) {
		t.Fatalf("Submit during submit: err=%v, want ErrBusy", err)
	}

	close(up.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	// 完成后恢复可用
	_ = c.CreateNew()
	_ = c.Apply(fillMandatory)
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save after submit: %v", err)
	}
}

func TestViewExistingReportBypassesValidation(t *testing.T) {
	c, store, _, _, _, _ := newTestController()
	ctx := context.Background()

	// 库里有一份字段不完整的旧报告
	old := model.NewReport()
	old.TajukProgram = "Program Lama"
	_ = store.Upsert(ctx, old)

	if err := c.ViewReport(ctx, old.ID); err != nil {
		t.Fatalf("ViewReport error: %v", err)
	}
	if c.View() != ViewPreview || c.Mode() != ModeStandard {
		t.Fatalf("view=%s mode=%s, want preview/standard", c.View(), c.Mode())
	}

	if err := c.BackToEdit(); err != nil {
		t.Fatalf("BackToEdit error: %v", err)
	}
	if c.View() != ViewEditing {
		t.Fatalf("view=%s, want editing", c.View())
	}
}

func TestPDFFailureAbortsExportOnly(t *testing.T) {
	c, store, pdf, up, notifier, _ := newTestController()
	pdf.fail = true
	ctx := context.Background()

	c.CreateNew()
	_ = c.Apply(fillMandatory)
	_ = c.Preview()

	if err := c.Submit(ctx); err == nil {
		t.Fatal("Submit must surface render error")
	}
	if up.uploaded != 0 {
		t.Fatalf("uploaded=%d, want 0 when rendering fails", up.uploaded)
	}
	if len(store.reports) != 0 {
		t.Fatalf("store=%d entries, want 0 (nothing persisted on render failure)", len(store.reports))
	}
	if c.View() != ViewPreview {
		t.Fatalf("view=%s, want preview kept", c.View())
	}
	if notifier.last() != msgPDFFailed {
		t.Fatalf("toast=%q, want %q", notifier.last(), msgPDFFailed)
	}
}
