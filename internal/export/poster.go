package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/sekolahdigital/opr/internal/model"
)

// 海报画布（4:5，适合社交媒体分享）
const (
	posterWidth  = 1080
	posterHeight = 1350
)

// Poster 装饰性海报 PNG 渲染器
type Poster struct {
	fontPath string // 可选 TTF 字体；为空时用内置位图字体
}

// NewPoster 创建海报渲染器
func NewPoster(fontPath string) *Poster {
	return &Poster{fontPath: fontPath}
}

// RenderPoster 渲染报告为海报 PNG
// transparent 为 true 时不铺底色，保留透明背景
func (p *Poster) RenderPoster(ctx context.Context, r *model.Report, transparent bool) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("report 不能为空")
	}

	dc := gg.NewContext(posterWidth, posterHeight)

	if !transparent {
		dc.SetHexColor("#FEF9C3") // 浅黄底，与表单主题一致
		dc.Clear()
	}

	// 标题区
	p.setFont(dc, 64)
	dc.SetHexColor("#B91C1C")
	title := r.TajukProgram
	if title == "" {
		title = "Program Sekolah"
	}
	dc.DrawStringWrapped(title, posterWidth/2, 140, 0.5, 0.5, posterWidth-160, 1.2, gg.AlignCenter)

	p.setFont(dc, 36)
	dc.SetHexColor("#1E293B")
	sub := fmt.Sprintf("%s  |  %s (%s)", r.Unit, r.Tarikh, r.Hari)
	dc.DrawStringAnchored(sub, posterWidth/2, 260, 0.5, 0.5)

	// 图片网格（保持表单顺序）
	p.drawPhotoGrid(dc, r.Gambar)

	// 页脚
	p.setFont(dc, 30)
	dc.SetHexColor("#475569")
	footer := "Disediakan oleh: " + r.DisediakanOleh
	if r.Jawatan != "" {
		footer += " (" + r.Jawatan + ")"
	}
	dc.DrawStringAnchored(footer, posterWidth/2, posterHeight-80, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// drawPhotoGrid 2x2 照片网格，单张裁切填满格子
func (p *Poster) drawPhotoGrid(dc *gg.Context, gambar []string) {
	shown := gambar
	if len(shown) > 4 {
		shown = shown[:4]
	}
	if len(shown) == 0 {
		return
	}

	const (
		gridTop  = 340
		gridGap  = 24
		cellSize = (posterWidth - 160 - gridGap) / 2
	)

	for i, path := range shown {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			slog.Warn("海报图片不可读，跳过", "path", path, "error", err)
			continue
		}
		fitted := imaging.Fill(img, cellSize, cellSize, imaging.Center, imaging.Lanczos)

		col := i % 2
		row := i / 2
		x := 80 + col*(cellSize+gridGap)
		y := gridTop + row*(cellSize+gridGap)
		dc.DrawImage(fitted, x, y)
	}
}

func (p *Poster) setFont(dc *gg.Context, points float64) {
	if p.fontPath == "" {
		return // gg 默认位图字体
	}
	if err := dc.LoadFontFace(p.fontPath, points); err != nil {
		slog.Warn("载入字体失败，退回默认字体", "path", p.fontPath, "error", err)
	}
}
