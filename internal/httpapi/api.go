package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sekolahdigital/opr/internal/bootstrap"
	"github.com/sekolahdigital/opr/internal/eventbus"
	"github.com/sekolahdigital/opr/internal/model"
	"github.com/sekolahdigital/opr/internal/service"
)

type apiServer struct {
	core      *bootstrap.Core
	hub       *eventbus.Hub
	gate      *eventbus.RenderGate
	startTime time.Time
}

func newAPI(core *bootstrap.Core, hub *eventbus.Hub, gate *eventbus.RenderGate) *apiServer {
	return &apiServer{
		core:      core,
		hub:       hub,
		gate:      gate,
		startTime: time.Now(),
	}
}

// ========== DTOs（与前端契约保持稳定，报告本体直接用马来文 JSON 键） ==========

type LifecycleStateDTO struct {
	View   string        `json:"view"`
	Mode   string        `json:"mode"`
	Report *model.Report `json:"report,omitempty"`
}

// EditRequestDTO 表单字段的部分更新（nil 表示不改）
type EditRequestDTO struct {
	Unit           *string   `json:"unit"`
	TajukProgram   *string   `json:"tajukProgram"`
	Tarikh         *string   `json:"tarikh"`
	Masa           *string   `json:"masa"`
	Objektif       *string   `json:"objektif"`
	Aktiviti       *string   `json:"aktiviti"`
	Kekuatan       *string   `json:"kekuatan"`
	Kelemahan      *string   `json:"kelemahan"`
	Penambahbaikan *string   `json:"penambahbaikan"`
	Refleksi       *string   `json:"refleksi"`
	DisediakanOleh *string   `json:"disediakanOleh"`
	Jawatan        *string   `json:"jawatan"`
	Gambar         *[]string `json:"gambar"`
}

type ViewRequestDTO struct {
	ID string `json:"id"`
}

type ModeRequestDTO struct {
	Mode string `json:"mode"`
}

type RenderSettledDTO struct {
	Mode string `json:"mode"`
}

type PDFResponseDTO struct {
	DataURI string `json:"dataUri"`
}

type ExcelResponseDTO struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// ========== routes ==========

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/reports", a.wrapGET(a.listReports))
	mux.HandleFunc("/api/reports/detail", a.wrapGET(a.getReportDetail))
	mux.HandleFunc("/api/stats", a.wrapGET(a.getStats))

	mux.HandleFunc("/api/lifecycle", a.wrapGET(a.getLifecycle))
	mux.HandleFunc("/api/lifecycle/new", a.wrapPOST(a.startNewReport))
	mux.HandleFunc("/api/lifecycle/edit", a.wrapPOST(a.editReport))
	mux.HandleFunc("/api/lifecycle/preview", a.wrapPOST(a.previewReport))
	mux.HandleFunc("/api/lifecycle/view", a.wrapPOST(a.viewStoredReport))
	mux.HandleFunc("/api/lifecycle/back", a.wrapPOST(a.backToEdit))
	mux.HandleFunc("/api/lifecycle/mode", a.wrapPOST(a.setPreviewMode))
	mux.HandleFunc("/api/lifecycle/save", a.wrapPOST(a.saveReport))
	mux.HandleFunc("/api/lifecycle/submit", a.wrapPOST(a.submitReport))
	mux.HandleFunc("/api/lifecycle/dashboard", a.wrapPOST(a.backToDashboard))

	mux.HandleFunc("/api/render/settled", a.wrapPOST(a.renderSettled))

	mux.HandleFunc("/api/ai/draft", a.wrapPOST(a.draftNarratives))

	mux.HandleFunc("/api/export/pdf", a.wrapGET(a.exportPDF))
	mux.HandleFunc("/api/export/poster", a.wrapGET(a.exportPoster))
	mux.HandleFunc("/api/export/excel", a.wrapPOST(a.exportExcel))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// writeLifecycleError 生命周期错误到 HTTP 状态码的映射
func writeLifecycleError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   ve.Error(),
			"missing": ve.Missing,
		})
		return
	}
	if errors.Is(err, service.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// ========== handlers ==========

func (a *apiServer) listReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	reports, err := a.core.Store.ListAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (a *apiServer) getReportDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "id 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, err := a.core.Store.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "laporan tidak ditemui")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *apiServer) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := a.core.Services.Lifecycle.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) getLifecycle(w http.ResponseWriter, r *http.Request) {
	c := a.core.Services.Lifecycle
	writeJSON(w, http.StatusOK, LifecycleStateDTO{
		View:   string(c.View()),
		Mode:   string(c.Mode()),
		Report: c.Current(),
	})
}

func (a *apiServer) startNewReport(w http.ResponseWriter, r *http.Request) {
	report := a.core.Services.Lifecycle.CreateNew()
	writeJSON(w, http.StatusOK, report)
}

func (a *apiServer) editReport(w http.ResponseWriter, r *http.Request) {
	var req EditRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}

	err := a.core.Services.Lifecycle.Apply(func(rep *model.Report) {
		if req.Unit != nil {
			rep.Unit = model.Unit(*req.Unit)
		}
		if req.TajukProgram != nil {
			rep.TajukProgram = *req.TajukProgram
		}
		if req.Tarikh != nil {
			service.ApplyTarikh(rep, *req.Tarikh)
		}
		if req.Masa != nil {
			rep.Masa = *req.Masa
		}
		if req.Objektif != nil {
			rep.Objektif = *req.Objektif
		}
		if req.Aktiviti != nil {
			rep.Aktiviti = *req.Aktiviti
		}
		if req.Kekuatan != nil {
			rep.Kekuatan = *req.Kekuatan
		}
		if req.Kelemahan != nil {
			rep.Kelemahan = *req.Kelemahan
		}
		if req.Penambahbaikan != nil {
			rep.Penambahbaikan = *req.Penambahbaikan
		}
		if req.Refleksi != nil {
			rep.Refleksi = *req.Refleksi
		}
		if req.DisediakanOleh != nil {
			rep.DisediakanOleh = *req.DisediakanOleh
		}
		if req.Jawatan != nil {
			rep.Jawatan = *req.Jawatan
		}
		if req.Gambar != nil {
			rep.Gambar = append([]string(nil), (*req.Gambar)...)
		}
	})
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.core.Services.Lifecycle.Current())
}

func (a *apiServer) previewReport(w http.ResponseWriter, r *http.Request) {
	if err := a.core.Services.Lifecycle.Preview(); err != nil {
		writeLifecycleError(w, err)
		return
	}
	a.hub.Publish(eventbus.Event{
		Type: eventbus.EventViewChanged,
		Data: map[string]any{"view": string(service.ViewPreview)},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) viewStoredReport(w http.ResponseWriter, r *http.Request) {
	var req ViewRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.core.Services.Lifecycle.ViewReport(ctx, req.ID); err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.core.Services.Lifecycle.Current())
}

func (a *apiServer) backToEdit(w http.ResponseWriter, r *http.Request) {
	if err := a.core.Services.Lifecycle.BackToEdit(); err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) setPreviewMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if err := a.core.Services.Lifecycle.SetMode(service.PreviewMode(req.Mode)); err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) saveReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := a.core.Services.Lifecycle.Save(ctx); err != nil {
		writeLifecycleError(w, err)
		return
	}
	a.hub.Publish(eventbus.Event{Type: eventbus.EventReportSaved})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) submitReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	if err := a.core.Services.Lifecycle.Submit(ctx); err != nil {
		writeLifecycleError(w, err)
		return
	}

	// 成功提交的报告进入相似度索引，供后续 AI 起草引用
	// 提交成功后控制器持有的就是已置 Submitted 的报告
	if submitted := a.core.Services.Lifecycle.Current(); submitted != nil && a.core.Services.Drafts != nil {
		a.core.Services.Drafts.IndexSubmitted(ctx, submitted)
	}

	a.hub.Publish(eventbus.Event{
		Type: eventbus.EventViewChanged,
		Data: map[string]any{"view": string(service.ViewDashboard)},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) backToDashboard(w http.ResponseWriter, r *http.Request) {
	a.core.Services.Lifecycle.BackToDashboard()
	a.hub.Publish(eventbus.Event{
		Type: eventbus.EventViewChanged,
		Data: map[string]any{"view": string(service.ViewDashboard)},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) renderSettled(w http.ResponseWriter, r *http.Request) {
	var req RenderSettledDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if a.gate != nil {
		a.gate.Signal(service.PreviewMode(req.Mode))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) draftNarratives(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	current := a.core.Services.Lifecycle.Current()
	if current == nil {
		writeError(w, http.StatusBadRequest, "tiada laporan sedang diedit")
		return
	}

	result := a.core.Services.Drafts.Draft(ctx, current)
	if err := a.core.Services.Lifecycle.Apply(func(rep *model.Report) {
		service.ApplyDraft(rep, result)
	}); err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *apiServer) exportPDF(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := a.resolveReport(ctx, r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	dataURI, err := a.core.Exporters.PDF.RenderStandard(ctx, report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PDFResponseDTO{DataURI: dataURI})
}

func (a *apiServer) exportPoster(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := a.resolveReport(ctx, r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	transparent := r.URL.Query().Get("transparent") == "1"
	png, err := a.core.Exporters.Poster.RenderPoster(ctx, report, transparent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (a *apiServer) exportExcel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	reports, err := a.core.Store.ListAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	path := filepath.Join(a.core.Cfg.Export.OutputDir, "rekod_opr.xlsx")
	if err := a.core.Exporters.Excel.Export(reports, path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ExcelResponseDTO{Path: path, Rows: len(reports)})
}

// resolveReport 按 id 取报告；id 为空时取生命周期当前报告
func (a *apiServer) resolveReport(ctx context.Context, id string) (*model.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		if current := a.core.Services.Lifecycle.Current(); current != nil {
			return current, nil
		}
		return nil, errors.New("tiada laporan dipilih")
	}
	report, err := a.core.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.New("laporan tidak ditemui")
	}
	return report, nil
}
