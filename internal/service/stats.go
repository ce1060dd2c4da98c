package service

import (
	"github.com/sekolahdigital/opr/internal/model"
)

// recentReportsLimit 仪表盘“最近报告”条数
const recentReportsLimit = 5

// ComputeStats 由存储内容推导仪表盘统计，纯函数
// byUnit 对枚举内每个单位都给出计数（含 0）；
// 未设置或未知单位的报告不计入 byUnit，但计入总数。
func ComputeStats(reports []model.Report) model.DashboardStats {
	stats := model.DashboardStats{
		TotalReports:  len(reports),
		ByUnit:        make(map[model.Unit]int, len(model.AllUnits)),
		RecentReports: []model.Report{},
	}
	for _, u := range model.AllUnits {
		stats.ByUnit[u] = 0
	}

	for _, r := range reports {
		if r.Unit.IsValid() {
			stats.ByUnit[r.Unit]++
		}
	}

	limit := recentReportsLimit
	if len(reports) < limit {
		limit = len(reports)
	}
	stats.RecentReports = append(stats.RecentReports, reports[:limit]...)

	return stats
}

// QualityScore 报告质量评分（1-5 星）
// 展示用的启发式指标，每次渲染重新计算，不落库。
func QualityScore(r *model.Report) int {
	score := 1
	if r == nil {
		return score
	}
	if r.Status == model.StatusSubmitted {
		score++
	}
	if len(r.Gambar) >= 4 {
		score++
	}
	if len(r.Refleksi) > 50 {
		score++
	}
	if len(r.Penambahbaikan) > 50 {
		score++
	}
	if score > 5 {
		score = 5
	}
	return score
}
