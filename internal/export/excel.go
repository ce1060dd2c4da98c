package export

import (
	"fmt"
	"time"

	"github.com/sekolahdigital/opr/internal/model"
	"github.com/xuri/excelize/v2"
)

// archiveSheet 与远端电子表格一致的工作表名
const archiveSheet = "Rekod_OPR"

// archiveHeaders 列头与 Apps Script 端点写入的列保持一致
var archiveHeaders = []string{
	"Timestamp",
	"Tarikh Program",
	"Unit",
	"Tajuk Program",
	"Disediakan Oleh",
	"Jawatan",
	"Objektif",
	"Aktiviti",
	"Kekuatan",
	"Kelemahan",
	"Penambahbaikan (AI)",
	"Refleksi (AI)",
	"Status",
	"Bil. Gambar",
}

// ExcelArchive 本地电子表格存档
// 远端 Google Sheet 的离线镜像：一行一报告，便于无网络时核对
type ExcelArchive struct{}

// NewExcelArchive 创建存档导出器
func NewExcelArchive() *ExcelArchive {
	return &ExcelArchive{}
}

// Export 把全部报告写入 .xlsx 文件
func (e *ExcelArchive) Export(reports []model.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(archiveSheet)
	if err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("删除默认工作表失败: %w", err)
	}

	for col, header := range archiveHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(archiveSheet, cell, header); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	for i, r := range reports {
		row := i + 2
		values := []interface{}{
			time.UnixMilli(r.CreatedAt).Format("2006-01-02 15:04:05"),
			r.Tarikh,
			string(r.Unit),
			r.TajukProgram,
			r.DisediakanOleh,
			r.Jawatan,
			r.Objektif,
			r.Aktiviti,
			r.Kekuatan,
			r.Kelemahan,
			r.Penambahbaikan,
			r.Refleksi,
			string(r.Status),
			len(r.Gambar),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(archiveSheet, cell, v); err != nil {
				return fmt.Errorf("写入第 %d 行失败: %w", row, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存 %s 失败: %w", path, err)
	}
	return nil
}
