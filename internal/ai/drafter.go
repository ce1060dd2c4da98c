package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// 起草失败时的固定占位文案（提示用户手动填写）
const (
	FallbackPenambahbaikan = "Gagal menjana cadangan penambahbaikan. Sila isi secara manual."
	FallbackRefleksi       = "Gagal menjana refleksi. Sila isi secara manual."
)

// maxDraftWords 单段起草的字数上限（约 50 patah perkataan，留少量余量）
const maxDraftWords = 60

// DraftRequest 起草请求的表单上下文
type DraftRequest struct {
	Aktiviti  string
	Objektif  string
	Kekuatan  string
	Kelemahan string

	// SimilarReports 相似历史报告摘要（可选，来自报告记忆库）
	SimilarReports []string
}

// DraftResult 起草结果
type DraftResult struct {
	Penambahbaikan string `json:"penambahbaikan"`
	Refleksi       string `json:"refleksi"`
}

// OPRDrafter 报告叙述字段起草器
type OPRDrafter struct {
	client *GeminiClient
}

// NewOPRDrafter 创建起草器
func NewOPRDrafter(client *GeminiClient) *OPRDrafter {
	return &OPRDrafter{client: client}
}

// draftSchema 强制 JSON 结构化输出
var draftSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"penambahbaikan": {Type: genai.TypeString},
		"refleksi":       {Type: genai.TypeString},
	},
	Required: []string{"penambahbaikan", "refleksi"},
}

// Draft 起草 Penambahbaikan 与 Refleksi 两段文字
// 任何失败都降级为固定占位文案，不向调用方返回错误
func (d *OPRDrafter) Draft(ctx context.Context, req DraftRequest) DraftResult {
	fallback := DraftResult{
		Penambahbaikan: FallbackPenambahbaikan,
		Refleksi:       FallbackRefleksi,
	}

	if !d.client.IsConfigured() {
		slog.Debug("Gemini 未配置，返回占位文案")
		return fallback
	}

	response, err := d.client.GenerateJSON(ctx, d.buildPrompt(req), draftSchema)
	if err != nil {
		slog.Warn("AI 起草失败，返回占位文案", "error", err)
		return fallback
	}

	var result DraftResult
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		slog.Warn("解析起草结果失败，返回占位文案", "response", response, "error", err)
		return fallback
	}

	if strings.TrimSpace(result.Penambahbaikan) == "" {
		result.Penambahbaikan = FallbackPenambahbaikan
	}
	if strings.TrimSpace(result.Refleksi) == "" {
		result.Refleksi = FallbackRefleksi
	}

	result.Penambahbaikan = boundWords(result.Penambahbaikan, maxDraftWords)
	result.Refleksi = boundWords(result.Refleksi, maxDraftWords)
	return result
}

// buildPrompt 构建马来语起草提示词
func (d *OPRDrafter) buildPrompt(req DraftRequest) string {
	var memory strings.Builder
	if len(req.SimilarReports) > 0 {
		memory.WriteString("\nRUJUKAN (laporan terdahulu yang serupa):\n")
		for _, s := range req.SimilarReports {
			memory.WriteString("- " + s + "\n")
		}
	}

	return fmt.Sprintf(`Bertindak sebagai pakar dokumentasi pendidikan sekolah Malaysia.
Sila jana dua bahagian laporan berdasarkan input berikut:

INPUT:
1. Objektif Program: %s
2. Ringkasan Aktiviti: %s
3. Kekuatan: %s
4. Kelemahan: %s
%s
TUGASAN:
1. Jana "Penambahbaikan": Cadangan konstruktif dan profesional berdasarkan Kelemahan dan Aktiviti. (Maksimum 50 patah perkataan)
2. Jana "Refleksi": Rumusan impak program berdasarkan Objektif dan Pelaksanaan sama ada tercapai atau tidak. (Maksimum 50 patah perkataan)

Gaya Bahasa: Bahasa Melayu Baku, Formal, Profesional (Laras bahasa pentadbiran sekolah).`,
		req.Objektif, req.Aktiviti, req.Kekuatan, req.Kelemahan, memory.String())
}

// boundWords 按词数截断（AI 偶尔超出提示词里的上限）
func boundWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
