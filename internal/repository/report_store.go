package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sekolahdigital/opr/internal/model"
	"github.com/sekolahdigital/opr/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorageKey 报告集合在本地键值区的固定键
// 与浏览器版 localStorage 的键保持一致，便于数据对照
const StorageKey = "opr_system_data_local"

// ReportStore 本地报告存储
// 整个集合按固定键整体序列化，写入是单条语句，对读者不可见中间态。
// 集合内顺序：新报告前插，更新原地替换（位置不变）。
type ReportStore struct {
	db *gorm.DB

	mu      sync.Mutex
	loaded  bool
	reports []model.Report
}

// NewReportStore 创建报告存储
func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

// load 首次访问时从持久层反序列化集合
// 键不存在或内容损坏都按空集合处理，不向调用方报错
func (s *ReportStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	var entry schema.LocalEntry
	err := s.db.WithContext(ctx).Where("key = ?", StorageKey).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.reports = []model.Report{}
			s.loaded = true
			return nil
		}
		return fmt.Errorf("读取本地存储失败: %w", err)
	}

	var reports []model.Report
	if err := json.Unmarshal(entry.Value, &reports); err != nil {
		// 损坏的存档视为空集合：接受旧数据丢失，换取启动永不失败
		slog.Warn("本地报告存档无法解析，按空集合处理", "key", StorageKey, "error", err)
		reports = []model.Report{}
	}
	s.reports = reports
	s.loaded = true
	return nil
}

// persist 将整个集合原子化写回固定键
func (s *ReportStore) persist(ctx context.Context, reports []model.Report) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("序列化报告集合失败: %w", err)
	}

	entry := schema.LocalEntry{Key: StorageKey, Value: data}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&entry).Error; err != nil {
		return fmt.Errorf("写入本地存储失败: %w", err)
	}
	return nil
}

// Upsert 插入或更新一份报告
// 已存在同 ID：原地替换，位置不变；否则前插为最新一条。
// 持久化失败时内存集合保持原样，旧数据不受影响。
func (s *ReportStore) Upsert(ctx context.Context, report *model.Report) error {
	if report == nil {
		return fmt.Errorf("report 不能为空")
	}
	if report.ID == "" {
		return fmt.Errorf("report ID 不能为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}

	next := make([]model.Report, 0, len(s.reports)+1)
	replaced := false
	for _, existing := range s.reports {
		if existing.ID == report.ID {
			next = append(next, *report.Clone())
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append([]model.Report{*report.Clone()}, next...)
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.reports = next
	return nil
}

// ListAll 按最近在前的顺序返回全部报告
func (s *ReportStore) ListAll(ctx context.Context) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	out := make([]model.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r.Clone())
	}
	return out, nil
}

// GetByID 按标识符查询，不存在返回 nil
func (s *ReportStore) GetByID(ctx context.Context, id string) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	for _, r := range s.reports {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

// Count 当前报告总数
func (s *ReportStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return 0, err
	}
	return len(s.reports), nil
}
