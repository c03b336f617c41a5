// Package gemini 提供 Google Gemini LLM 供应商实现。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kart-io/faqbot/pkg/llm"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey Google AI API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		EmbedModel: "text-embedding-004",
		ChatModel:  "gemini-1.5-flash",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config     *Config
	httpClient *http.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api_key is required", llm.ErrUnavailable)
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// embedRequest Gemini batchEmbedContents API 请求体。
type embedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type embedContentRequest struct {
	Model   string       `json:"model"`
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

// embedResponse Gemini batchEmbedContents API 响应体。
type embedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]embedContentRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedContentRequest{
			Model: fmt.Sprintf("models/%s", p.config.EmbedModel),
			Content: embedContent{
				Parts: []embedPart{{Text: text}},
			},
		}
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s",
		p.config.BaseURL, p.config.EmbedModel, p.config.APIKey)

	var embedResp embedResponse
	if err := p.postJSON(ctx, url, embedRequest{Requests: requests}, &embedResp); err != nil {
		return nil, err
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d texts",
			len(embedResp.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(embedResp.Embeddings))
	for i, emb := range embedResp.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("gemini: no embedding returned")
	}
	return embeddings[0], nil
}

// chatRequest Gemini generateContent API 请求体。
type chatRequest struct {
	Contents          []chatContent     `json:"contents"`
	SystemInstruction *chatContent      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type chatContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []chatPart `json:"parts"`
}

type chatPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// chatResponse Gemini generateContent API 响应体。
type chatResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Chat 进行多轮对话。system 消息映射为 systemInstruction。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var contents []chatContent
	var systemInstruction *chatContent

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			systemInstruction = &chatContent{
				Parts: []chatPart{{Text: msg.Content}},
			}
		case llm.RoleUser:
			contents = append(contents, chatContent{
				Role:  "user",
				Parts: []chatPart{{Text: msg.Content}},
			})
		case llm.RoleAssistant:
			contents = append(contents, chatContent{
				Role:  "model",
				Parts: []chatPart{{Text: msg.Content}},
			})
		}
	}

	reqBody := chatRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.config.BaseURL, p.config.ChatModel, p.config.APIKey)

	var chatResp chatResponse
	if err := p.postJSON(ctx, url, reqBody, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Candidates) == 0 || len(chatResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return chatResp.Candidates[0].Content.Parts[0].Text, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var messages []llm.Message
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	return p.Chat(ctx, messages)
}

// postJSON 发送 JSON 请求并解析响应，5xx 和网络错误按退避重试。
// 每次重试重建请求体，避免复用已消费的 reader。
func (p *Provider) postJSON(ctx context.Context, url string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("gemini: encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("gemini: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("gemini: server error, status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("gemini: request failed, status %d: %s", resp.StatusCode, string(data))
		}

		err = json.NewDecoder(resp.Body).Decode(respBody)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("gemini: decode response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", llm.ErrUnavailable, lastErr)
}
