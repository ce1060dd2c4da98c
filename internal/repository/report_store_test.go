package repository

import (
	"context"
	"testing"

	"github.com/sekolahdigital/opr/internal/model"
	"github.com/sekolahdigital/opr/internal/schema"
	"github.com/sekolahdigital/opr/internal/testutil"
)

func newStoredReport(id, tajuk string) *model.Report {
	r := model.NewReport()
	r.ID = id
	r.Unit = model.UnitKurikulum
	r.TajukProgram = tajuk
	r.DisediakanOleh = "Aminah"
	return r
}

func TestReportStoreUpsertInsertAndOverwrite(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := NewReportStore(db)
	ctx := context.Background()

	r := newStoredReport("r1", "Hari Guru")
	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	// 覆盖写：同 ID 只保留一条，字段为最后一次写入的值
	r.TajukProgram = "Hari Guru 2024"
	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Upsert overwrite error: %v", err)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d reports, want 1", len(all))
	}
	if all[0].ID != "r1" || all[0].TajukProgram != "Hari Guru 2024" {
		t.Fatalf("got %+v, want last-upserted values", all[0])
	}
}

func TestReportStoreOrderNewestFirstUpdateKeepsPosition(t *testing.T) {
	db := testutil.OpenTestDB(t)
	store := NewReportStore(db)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Upsert(ctx, newStoredReport(id, "Program "+id)); err != nil {
			t.Fatalf("Upsert %s error: %v", id, err)
		}
	}

	all, _ := store.ListAll(ctx)
	wantOrder := []string{"c", "b", "a"}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("order[%d]=%s, want %s", i, all[i].ID, want)
		}
	}

	// 更新中间一条不改变其位置
	b := newStoredReport("b", "Program b dikemaskini")
	if err := store.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert update error: %v", err)
	}
	all, _ = store.ListAll(ctx)
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("after update order[%d]=%s, want %s", i, all[i].ID, want)
		}
	}
	if all[1].TajukProgram != "Program b dikemaskini" {
		t.Fatalf("update not applied: %+v", all[1])
	}
}

func TestReportStorePersistsAcrossInstances(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	store := NewReportStore(db)
	if err := store.Upsert(ctx, newStoredReport("r1", "Sukan Tahunan")); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	// 新实例从持久层重新加载
	reopened := NewReportStore(db)
	all, err := reopened.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll error: %v", err)
	}
	if len(all) != 1 || all[0].TajukProgram != "Sukan Tahunan" {
		t.Fatalf("got %+v, want persisted report", all)
	}
}

func TestReportStoreCorruptArchiveTreatedAsEmpty(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	entry := schema.LocalEntry{Key: StorageKey, Value: []byte("{not json")}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	store := NewReportStore(db)
	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll must not fail on corrupt archive: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("got %d reports, want 0", len(all))
	}

	// 损坏存档之后仍可正常写入
	if err := store.Upsert(ctx, newStoredReport("r1", "Gotong-royong")); err != nil {
		t.Fatalf("Upsert after corrupt load: %v", err)
	}
}

func TestReportStoreMissingFieldsDefaultOnRead(t *testing.T) {
	db := testutil.OpenTestDB(t)
	ctx := context.Background()

	// 旧版存档可能缺字段：缺失字段读取时取零值
	legacy := []byte(`[{"id":"old1","tajukProgram":"Program Lama","status":"Draft"}]`)
	if err := db.Create(&schema.LocalEntry{Key: StorageKey, Value: legacy}).Error; err != nil {
		t.Fatalf("seed legacy entry: %v", err)
	}

	store := NewReportStore(db)
	got, err := store.GetByID(ctx, "old1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got == nil || got.TajukProgram != "Program Lama" {
		t.Fatalf("got %+v, want legacy report", got)
	}
	if got.Unit != "" || len(got.Gambar) != 0 {
		t.Fatalf("missing fields must default to zero values: %+v", got)
	}
}
