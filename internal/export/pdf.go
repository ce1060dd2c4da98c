package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/sekolahdigital/opr/internal/model"
)

// PDFDataURIPrefix 标准版面导出的 data URI 前缀
// 上传前由调用方剥离
const PDFDataURIPrefix = "data:application/pdf;base64,"

// 页面常量（A4 纵向，单位 mm）
const (
	pageWidth  = 210.0
	pageMargin = 12.0
	lineHeight = 5.0
)

// StandardPDF 标准一页版面 PDF 渲染器
// 恰好输出一页：关闭自动分页，超出部分被裁切而非换页
type StandardPDF struct{}

// NewStandardPDF 创建渲染器
func NewStandardPDF() *StandardPDF {
	return &StandardPDF{}
}

// RenderStandard 渲染报告为单页 A4 PDF，返回 data URI
func (p *StandardPDF) RenderStandard(ctx context.Context, r *model.Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report 不能为空")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0) // 单页契约：超出裁切，不分页
	pdf.AddPage()

	contentWidth := pageWidth - 2*pageMargin

	// 页眉
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(contentWidth, 9, "LAPORAN SATU HALAMAN (OPR)", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(contentWidth, 7, r.TajukProgram, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// 基本信息行
	pdf.SetFont("Arial", "", 9)
	meta := fmt.Sprintf("Unit: %s   Tarikh: %s (%s)   Masa: %s", r.Unit, r.Tarikh, r.Hari, r.Masa)
	pdf.CellFormat(contentWidth, 6, meta, "TB", 1, "L", false, 0, "")
	pdf.Ln(2)

	// 叙述区块
	sections := []struct {
		label string
		text  string
	}{
		{"OBJEKTIF", r.Objektif},
		{"AKTIVITI", r.Aktiviti},
		{"KEKUATAN", r.Kekuatan},
		{"KELEMAHAN", r.Kelemahan},
		{"PENAMBAHBAIKAN", r.Penambahbaikan},
		{"REFLEKSI", r.Refleksi},
	}
	for _, s := range sections {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(contentWidth, 6, s.label, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		text := s.text
		if text == "" {
			text = "-"
		}
		pdf.MultiCell(contentWidth, lineHeight, text, "", "L", false)
		pdf.Ln(1)
	}

	// 图片网格（顺序即表单顺序，最多 4 张）
	p.drawGambar(pdf, r.Gambar, contentWidth)

	// 签署栏
	pdf.SetFont("Arial", "", 9)
	pdf.Ln(3)
	pdf.CellFormat(contentWidth, 5, "Disediakan oleh: "+r.DisediakanOleh, "", 1, "L", false, 0, "")
	if r.Jawatan != "" {
		pdf.CellFormat(contentWidth, 5, "Jawatan: "+r.Jawatan, "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("输出 PDF 失败: %w", err)
	}
	return PDFDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// drawGambar 绘制图片网格
// 单个文件缺失/损坏只跳过该格，不导致整页失败
func (p *StandardPDF) drawGambar(pdf *fpdf.Fpdf, gambar []string, contentWidth float64) {
	if len(gambar) == 0 {
		return
	}

	const perRow = 2
	cellW := (contentWidth - 4) / perRow
	cellH := cellW * 0.62

	shown := gambar
	if len(shown) > 4 {
		shown = shown[:4]
	}

	x0 := pageMargin
	y := pdf.GetY()
	for i, path := range shown {
		if _, err := os.Stat(path); err != nil {
			slog.Warn("图片不可读，跳过", "path", path, "error", err)
			continue
		}
		col := i % perRow
		if i > 0 && col == 0 {
			y += cellH + 2
		}
		x := x0 + float64(col)*(cellW+4)
		pdf.ImageOptions(path, x, y, cellW, cellH, false, fpdf.ImageOptions{AllowNegativePosition: false}, 0, "")
	}
	pdf.SetY(y + cellH + 2)
}
