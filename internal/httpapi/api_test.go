package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sekolahdigital/opr/internal/bootstrap"
	"github.com/sekolahdigital/opr/internal/eventbus"
	"github.com/sekolahdigital/opr/internal/export"
	"github.com/sekolahdigital/opr/internal/model"
	"github.com/sekolahdigital/opr/internal/pkg/config"
	"github.com/sekolahdigital/opr/internal/repository"
	"github.com/sekolahdigital/opr/internal/service"
	"github.com/sekolahdigital/opr/internal/testutil"
	"github.com/sekolahdigital/opr/internal/upload"
)

// newTestServer 手工拼装 Core（内存库 + httptest 上传端点），不走配置文件
func newTestServer(t *testing.T) (*LocalServer, *bootstrap.Core) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(upstream.Close)

	core := &bootstrap.Core{
		Cfg: config.Default(),
		Hub: eventbus.NewHub(),
	}
	core.Cfg.Export.OutputDir = t.TempDir()
	core.Store = repository.NewReportStore(testutil.OpenTestDB(t))
	core.Exporters.PDF = export.NewStandardPDF()
	core.Exporters.Poster = export.NewPoster("")
	core.Exporters.Excel = export.NewExcelArchive()
	core.Gate = eventbus.NewRenderGate(core.Hub)
	core.Services.Lifecycle = service.NewController(
		core.Store,
		core.Exporters.PDF,
		upload.NewScriptClient(&upload.ScriptConfig{ScriptURL: upstream.URL}),
		eventbus.NewToastNotifier(core.Hub),
		core.Gate,
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := Start(ctx, core, Options{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, core
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.BaseURL()

	// 健康检查
	resp, err := http.Get(base + "/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %v status=%v", err, resp)
	}
	resp.Body.Close()

	// 新建报告
	resp = postJSON(t, base+"/api/lifecycle/new", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new status=%d", resp.StatusCode)
	}
	resp.Body.Close()

	// 缺必填字段时预览被 422 拒绝
	resp = postJSON(t, base+"/api/lifecycle/preview", map[string]any{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete preview status=%d, want 422", resp.StatusCode)
	}
	var veBody struct {
		Missing []string `json:"missing"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&veBody)
	resp.Body.Close()
	if len(veBody.Missing) == 0 {
		t.Fatal("422 response must list missing fields")
	}

	// 补全字段
	resp = postJSON(t, base+"/api/lifecycle/edit", map[string]any{
		"unit":           "Kurikulum",
		"tajukProgram":   "Hari Guru",
		"tarikh":         "2024-05-16",
		"disediakanOleh": "Aminah",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status=%d", resp.StatusCode)
	}
	var edited model.Report
	_ = json.NewDecoder(resp.Body).Decode(&edited)
	resp.Body.Close()
	if edited.Hari != "Khamis" {
		t.Fatalf("hari=%q, want Khamis derived from tarikh", edited.Hari)
	}

	// 预览放行
	resp = postJSON(t, base+"/api/lifecycle/preview", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status=%d", resp.StatusCode)
	}
	resp.Body.Close()

	// 提交：上传端点返回 200，报告应变为 Submitted 并回到 dashboard
	resp = postJSON(t, base+"/api/lifecycle/submit", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status=%d", resp.StatusCode)
	}
	resp.Body.Close()

	// 提交后生命周期里的当前报告即已置 Submitted 的那份
	resp, err = http.Get(base + "/api/lifecycle")
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	var state LifecycleStateDTO
	_ = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.Report == nil || state.Report.Status != model.StatusSubmitted {
		t.Fatalf("post-submit lifecycle report=%+v, want Submitted", state.Report)
	}

	resp, err = http.Get(base + "/api/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats model.DashboardStats
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if stats.TotalReports != 1 {
		t.Fatalf("totalReports=%d, want 1", stats.TotalReports)
	}
	if stats.ByUnit[model.UnitKurikulum] != 1 {
		t.Fatalf("byUnit[Kurikulum]=%d, want 1", stats.ByUnit[model.UnitKurikulum])
	}
	if stats.RecentReports[0].Status != model.StatusSubmitted {
		t.Fatalf("status=%q, want Submitted", stats.RecentReports[0].Status)
	}
}

func TestExportRoutes(t *testing.T) {
	srv, core := newTestServer(t)
	base := srv.BaseURL()

	report := model.NewReport()
	report.Unit = model.UnitHEM
	report.TajukProgram = "Gotong-royong"
	report.DisediakanOleh = "Rahim"
	if err := core.Store.Upsert(context.Background(), report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	// PDF data URI
	resp, err := http.Get(base + "/api/export/pdf?id=" + report.ID)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("export pdf: %v status=%v", err, resp)
	}
	var pdfResp PDFResponseDTO
	_ = json.NewDecoder(resp.Body).Decode(&pdfResp)
	resp.Body.Close()
	if len(pdfResp.DataURI) == 0 || pdfResp.DataURI[:5] != "data:" {
		t.Fatalf("dataUri=%.30q, want data URI", pdfResp.DataURI)
	}

	// 海报 PNG
	resp, err = http.Get(base + "/api/export/poster?id=" + report.ID)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("export poster: %v status=%v", err, resp)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type=%q, want image/png", ct)
	}
	resp.Body.Close()

	// Excel 归档
	resp = postJSON(t, base+"/api/export/excel", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export excel status=%d", resp.StatusCode)
	}
	var xl ExcelResponseDTO
	_ = json.NewDecoder(resp.Body).Decode(&xl)
	resp.Body.Close()
	if xl.Rows != 1 || filepath.Ext(xl.Path) != ".xlsx" {
		t.Fatalf("excel response=%+v", xl)
	}

	// 不存在的报告
	resp, _ = http.Get(base + "/api/export/pdf?id=tiada")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing report status=%d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRenderSettledRoute(t *testing.T) {
	srv, core := newTestServer(t)
	base := srv.BaseURL()

	// 有订阅者时 WaitSettled 需等待客户端经由路由回报
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	_ = core.Hub.Subscribe(subCtx, 4)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- core.Gate.WaitSettled(ctx, service.ModeStandard)
	}()

	resp := postJSON(t, base+"/api/render/settled", map[string]any{"mode": "standard"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("render settled status=%d", resp.StatusCode)
	}
	resp.Body.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitSettled error: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("route signal did not release the render gate")
	}
}
