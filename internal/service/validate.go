package service

import (
	"strings"
	"time"

	"github.com/sekolahdigital/opr/internal/model"
)

// 必填字段的用户可见名称（马来语表单标签），顺序固定
const (
	FieldUnit           = "Unit"
	FieldTajukProgram   = "Tajuk Program"
	FieldTarikh         = "Tarikh"
	FieldDisediakanOleh = "Disediakan Oleh"
)

// ValidateForPreview 预览/提交前的必填检查
// 返回缺失字段名列表，全部齐备时返回空列表；不修改入参。
// 调用方必须在列表非空时阻止预览与提交，并原样展示字段名。
func ValidateForPreview(r *model.Report) []string {
	missing := []string{}
	if r == nil {
		return []string{FieldUnit, FieldTajukProgram, FieldTarikh, FieldDisediakanOleh}
	}
	if strings.TrimSpace(string(r.Unit)) == "" {
		missing = append(missing, FieldUnit)
	}
	if strings.TrimSpace(r.TajukProgram) == "" {
		missing = append(missing, FieldTajukProgram)
	}
	if strings.TrimSpace(r.Tarikh) == "" {
		missing = append(missing, FieldTarikh)
	}
	if strings.TrimSpace(r.DisediakanOleh) == "" {
		missing = append(missing, FieldDisediakanOleh)
	}
	return missing
}

// 马来语星期名，time.Weekday 序（Ahad = 星期日）
var hariNames = [7]string{"Ahad", "Isnin", "Selasa", "Rabu", "Khamis", "Jumaat", "Sabtu"}

// HariForTarikh 由日期推导马来语星期名
// 无法解析的日期返回空串，不报错
func HariForTarikh(tarikh string) string {
	if strings.TrimSpace(tarikh) == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", tarikh)
	if err != nil {
		return ""
	}
	return hariNames[int(t.Weekday())]
}

// ApplyTarikh 设置日期并同步派生的星期字段
func ApplyTarikh(r *model.Report, tarikh string) {
	r.Tarikh = tarikh
	r.Hari = HariForTarikh(tarikh)
}
