package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sekolahdigital/opr/internal/model"
)

// ScriptClient Google Apps Script 上传端点客户端
// 端点挂在电子表格上：收到 POST 后把 PDF 存入云盘、字段追加成表格行。
// 响应体不可机读（浏览器版是 no-cors 的 opaque 响应），
// 因此传输层无错即视为应用层成功——这是端点契约固有的盲区。
type ScriptClient struct {
	scriptURL string
	client    *http.Client
}

// ScriptConfig 配置
type ScriptConfig struct {
	ScriptURL string
	Timeout   time.Duration
}

// NewScriptClient 创建客户端
func NewScriptClient(cfg *ScriptConfig) *ScriptClient {
	if cfg == nil {
		cfg = &ScriptConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ScriptClient{
		scriptURL: cfg.ScriptURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IsConfigured 检查是否已配置端点
func (c *ScriptClient) IsConfigured() bool {
	return c.scriptURL != ""
}

// uploadPayload 上传载荷：报告全部字段 + 去掉 data URI 前缀的 PDF
type uploadPayload struct {
	*model.Report
	PDFBase64 string `json:"pdfBase64"`
}

// Upload 一次性上报（不重试，失败由用户手动重发）
func (c *ScriptClient) Upload(ctx context.Context, report *model.Report, pdfDataURI string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("URL Google Script belum ditetapkan")
	}
	if report == nil {
		return fmt.Errorf("report 不能为空")
	}

	body, err := json.Marshal(uploadPayload{
		Report:    report,
		PDFBase64: stripDataURIPrefix(pdfDataURI),
	})
	if err != nil {
		return fmt.Errorf("序列化上传载荷失败: %w", err)
	}

	// Content-Type 必须是 text/plain：Apps Script 端点靠它绕过 preflight
	req, err := http.NewRequestWithContext(ctx, "POST", c.scriptURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("menghantar ke Google Script gagal: %w", err)
	}
	defer resp.Body.Close()

	// 响应内容仅作诊断日志，不参与成败判定
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	slog.Debug("上传端点响应", "status", resp.StatusCode, "body", string(respBody))

	return nil
}

// stripDataURIPrefix 去掉 data:application/pdf;base64, 前缀
func stripDataURIPrefix(s string) string {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+1:]
	}
	return s
}
