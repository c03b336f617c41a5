package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxAudioBytes 单条语音的下载上限，WhatsApp 语音远小于此值。
const maxAudioBytes = 16 << 20

// WhisperConfig Whisper 转写配置。
type WhisperConfig struct {
	// BaseURL API 基础地址，兼容 OpenAI audio API。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model 转写模型。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MediaUser / MediaPass 下载媒体文件时的 basic auth 凭证，
	// Twilio 的媒体地址需要账号 SID 与 auth token。
	MediaUser string `json:"media_user" mapstructure:"media_user"`
	MediaPass string `json:"media_pass" mapstructure:"media_pass"`
}

// DefaultWhisperConfig 返回默认配置。
func DefaultWhisperConfig() *WhisperConfig {
	return &WhisperConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "whisper-1",
		Timeout: 60 * time.Second,
	}
}

// WhisperTranscriber 基于 Whisper 兼容 API 的转写实现。
type WhisperTranscriber struct {
	config     *WhisperConfig
	httpClient *http.Client
}

var _ Transcriber = (*WhisperTranscriber)(nil)

// NewWhisperTranscriber 创建 Whisper 转写器。
func NewWhisperTranscriber(config *WhisperConfig) (*WhisperTranscriber, error) {
	if config == nil {
		config = DefaultWhisperConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: whisper api_key is required", ErrUnavailable)
	}

	return &WhisperTranscriber{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// TranscribeURL 下载音频并转写为文本。
func (t *WhisperTranscriber) TranscribeURL(ctx context.Context, mediaURL string) (string, error) {
	audio, contentType, err := t.download(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	return t.transcribe(ctx, audio, contentType)
}

// download 下载媒体文件，配置了凭证时带 basic auth。
func (t *WhisperTranscriber) download(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: build download request: %w", err)
	}
	if t.config.MediaUser != "" {
		req.SetBasicAuth(t.config.MediaUser, t.config.MediaPass)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("transcribe: download media, status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, "", fmt.Errorf("transcribe: read media: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("transcribe: empty media file")
	}

	return audio, resp.Header.Get("Content-Type"), nil
}

// transcribe 调用 Whisper 兼容接口转写音频。
func (t *WhisperTranscriber) transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filenameFor(contentType))
	if err != nil {
		return "", fmt.Errorf("transcribe: build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("transcribe: write audio: %w", err)
	}
	if err := writer.WriteField("model", t.config.Model); err != nil {
		return "", fmt.Errorf("transcribe: write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.config.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcribe: request failed, status %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// filenameFor 根据媒体类型推断上传文件名，Whisper 依赖扩展名识别格式。
func filenameFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"):
		return "audio.ogg"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "audio.mp3"
	case strings.Contains(contentType, "wav"):
		return "audio.wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return "audio.m4a"
	default:
		return "audio.ogg"
	}
}
