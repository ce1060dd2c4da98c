package model

import (
	"time"

	"github.com/google/uuid"
)

// Unit 报告所属的学校行政单位（固定枚举）
type Unit string

const (
	UnitPentadbiran Unit = "Pentadbiran"
	UnitKurikulum   Unit = "Kurikulum"
	UnitKokurikulum Unit = "Kokurikulum"
	UnitHEM         Unit = "Hal Ehwal Murid"
	UnitPIBG        Unit = "PIBG"
)

// AllUnits 枚举全集，顺序即仪表盘展示顺序
var AllUnits = []Unit{
	UnitPentadbiran,
	UnitKurikulum,
	UnitKokurikulum,
	UnitHEM,
	UnitPIBG,
}

// IsValid 判断是否为枚举内的单位（空值不算）
func (u Unit) IsValid() bool {
	for _, known := range AllUnits {
		if u == known {
			return true
		}
	}
	return false
}

// Status 报告生命周期状态
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
)

// Report 一页式活动报告（OPR）
// JSON 键与上传端点的电子表格契约保持一致，不可改名
type Report struct {
	ID             string   `json:"id"`
	Unit           Unit     `json:"unit"` // 枚举单位，允许为空（未选择）
	TajukProgram   string   `json:"tajukProgram"`
	Tarikh         string   `json:"tarikh"` // YYYY-MM-DD
	Hari           string   `json:"hari"`   // 由 Tarikh 推导的马来语星期名
	Masa           string   `json:"masa"`
	Objektif       string   `json:"objektif"`
	Aktiviti       string   `json:"aktiviti"`
	Kekuatan       string   `json:"kekuatan"`
	Kelemahan      string   `json:"kelemahan"`
	Penambahbaikan string   `json:"penambahbaikan"` // 可由 AI 起草
	Refleksi       string   `json:"refleksi"`       // 可由 AI 起草
	DisediakanOleh string   `json:"disediakanOleh"`
	Jawatan        string   `json:"jawatan"`
	Gambar         []string `json:"gambar"` // 图片引用，顺序决定版面布局
	Status         Status   `json:"status"`
	CreatedAt      int64    `json:"createdAt"` // Unix 毫秒，创建时一次性写入
}

// NewReport 创建一份新的草稿报告
// 标识符一次性分配，之后不再变更
func NewReport() *Report {
	return &Report{
		ID:        uuid.NewString(),
		Tarikh:    time.Now().Format("2006-01-02"),
		Gambar:    []string{},
		Status:    StatusDraft,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// Clone 深拷贝报告（Gambar 切片独立）
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Gambar = append([]string(nil), r.Gambar...)
	return &cp
}

// DashboardStats 仪表盘统计（派生数据，不落库）
type DashboardStats struct {
	TotalReports  int          `json:"totalReports"`
	ByUnit        map[Unit]int `json:"byUnit"` // 枚举内所有单位都有键，计数可为 0
	RecentReports []Report     `json:"recentReports"`
}
