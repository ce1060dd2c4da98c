package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// maxGambarWidth 附件图片的最大宽度（像素）
const maxGambarWidth = 1600

// Attachments 报告图片附件管理
// 浏览器版用的是进程内 Object URL，重启即失效；
// 这里把引用的图片拷入托管目录，引用换成稳定的文件路径
type Attachments struct {
	dir string
}

// NewAttachments 创建附件管理器
func NewAttachments(dir string) (*Attachments, error) {
	if dir == "" {
		dir = "./data/gambar"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建附件目录失败: %w", err)
	}
	return &Attachments{dir: dir}, nil
}

// Import 导入一张图片，返回托管路径
// 过大的图片按比例缩到最大宽度，统一存为 JPEG
func (a *Attachments) Import(srcPath string) (string, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("读取图片失败: %w", err)
	}

	if img.Bounds().Dx() > maxGambarWidth {
		img = imaging.Resize(img, maxGambarWidth, 0, imaging.Lanczos)
	}

	dest := filepath.Join(a.dir, uuid.NewString()+".jpg")
	if err := imaging.Save(img, dest, imaging.JPEGQuality(88)); err != nil {
		return "", fmt.Errorf("保存图片失败: %w", err)
	}
	return dest, nil
}

// ImportAll 按原顺序导入多张图片
// 单张失败即整体失败，不产生半套引用
func (a *Attachments) ImportAll(srcPaths []string) ([]string, error) {
	out := make([]string, 0, len(srcPaths))
	for _, src := range srcPaths {
		dest, err := a.Import(src)
		if err != nil {
			return nil, fmt.Errorf("导入 %s 失败: %w", src, err)
		}
		out = append(out, dest)
	}
	return out, nil
}
