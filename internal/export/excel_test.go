package export

import (
	"path/filepath"
	"testing"

	"github.com/sekolahdigital/opr/internal/model"
	"github.com/xuri/excelize/v2"
)

func TestExcelArchiveExport(t *testing.T) {
	reports := []model.Report{
		{
			ID:             "r2",
			Unit:           model.UnitHEM,
			TajukProgram:   "Gotong-royong",
			Tarikh:         "2024-06-01",
			DisediakanOleh: "Rahim",
			Status:         model.StatusSubmitted,
			Gambar:         []string{"a.jpg", "b.jpg"},
			CreatedAt:      1717200000000,
		},
		{
			ID:             "r1",
			Unit:           model.UnitKurikulum,
			TajukProgram:   "Hari Guru",
			Tarikh:         "2024-05-16",
			DisediakanOleh: "Aminah",
			Status:         model.StatusDraft,
			CreatedAt:      1715817600000,
		},
	}

	path := filepath.Join(t.TempDir(), "rekod_opr.xlsx")
	if err := NewExcelArchive().Export(reports, path); err != nil {
		t.Fatalf("Export error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue(archiveSheet, "D1")
	if err != nil || got != "Tajuk Program" {
		t.Fatalf("D1=%q err=%v, want header Tajuk Program", got, err)
	}

	// 行序与存储序一致（最新在前）
	if got, _ := f.GetCellValue(archiveSheet, "D2"); got != "Gotong-royong" {
		t.Fatalf("D2=%q, want Gotong-royong", got)
	}
	if got, _ := f.GetCellValue(archiveSheet, "D3"); got != "Hari Guru" {
		t.Fatalf("D3=%q, want Hari Guru", got)
	}
	if got, _ := f.GetCellValue(archiveSheet, "M2"); got != "Submitted" {
		t.Fatalf("M2=%q, want Submitted", got)
	}
	if got, _ := f.GetCellValue(archiveSheet, "N2"); got != "2" {
		t.Fatalf("N2=%q, want 2", got)
	}
}

func TestExcelArchiveEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kosong.xlsx")
	if err := NewExcelArchive().Export(nil, path); err != nil {
		t.Fatalf("Export empty error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(archiveSheet, "A1"); got != "Timestamp" {
		t.Fatalf("A1=%q, want Timestamp header", got)
	}
}
