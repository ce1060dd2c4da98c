package ai

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiClient Gemini API 客户端（起草 + 嵌入共用一个连接）
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// GeminiConfig 配置
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// NewGeminiClient 创建客户端
// 未配置 API Key 时返回未就绪的客户端，调用方以 IsConfigured 判断
func NewGeminiClient(ctx context.Context, cfg *GeminiConfig) (*GeminiClient, error) {
	if cfg == nil {
		cfg = &GeminiConfig{}
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-3-flash-preview"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}

	gc := &GeminiClient{
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
	if cfg.APIKey == "" {
		return gc, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	gc.client = client
	return gc, nil
}

// IsConfigured 检查是否已配置
func (c *GeminiClient) IsConfigured() bool {
	return c != nil && c.client != nil
}

// GenerateJSON 发送生成请求并要求 JSON 结构化输出
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("Gemini API 未配置")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini 生成失败: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini 无响应内容")
	}

	slog.Debug("Gemini 生成成功", "model", c.model, "chars", len(text))
	return text, nil
}

// Embed 生成单条文本的嵌入向量
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("Gemini API 未配置")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := c.client.Models.EmbedContent(ctx,
		c.embeddingModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("生成嵌入失败: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("嵌入结果为空")
	}
	return result.Embeddings[0].Values, nil
}
