// Package transcribe 提供语音消息的下载与转写。
package transcribe

import (
	"context"
	"errors"
)

// ErrUnavailable 表示转写服务未配置或不可达。
var ErrUnavailable = errors.New("transcribe: service unavailable")

// Transcriber 定义语音转写接口。
type Transcriber interface {
	// TranscribeURL 下载音频并转写为文本。
	TranscribeURL(ctx context.Context, mediaURL string) (string, error)
}
