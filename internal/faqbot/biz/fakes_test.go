package biz

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/kart-io/faqbot/internal/model"
	"github.com/kart-io/faqbot/internal/pkg/textutil"
	"github.com/kart-io/faqbot/pkg/llm"
)

const fakeEmbedDim = 64

// fakeEmbedder 确定性的词袋嵌入，相同文本得到相同向量，
// 词汇重叠越多的文本相似度越高。
type fakeEmbedder struct{}

var _ llm.EmbeddingProvider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorize(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return f.vectorize(text), nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) vectorize(text string) []float32 {
	v := make([]float32, fakeEmbedDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?\"'")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[h.Sum32()%fakeEmbedDim]++
	}
	return textutil.NormalizeL2(v)
}

// fakeChat 可配置回答或错误的 Chat 供应商，记录最后一次收到的提示词。
type fakeChat struct {
	answer     string
	err        error
	lastPrompt string
}

var _ llm.ChatProvider = (*fakeChat)(nil)

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	return f.answer, f.err
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	f.lastPrompt = prompt
	return f.answer, f.err
}

func (f *fakeChat) Name() string { return "fake-chat" }

// captureRecorder 线程安全地记录收到的对话日志。
type captureRecorder struct {
	mu      sync.Mutex
	records []*model.ConversationRecord
}

func (r *captureRecorder) Log(_ context.Context, record *model.ConversationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *captureRecorder) Analytics(_ context.Context, businessID string, _ int) (*model.Analytics, error) {
	return &model.Analytics{BusinessID: businessID}, nil
}

func (r *captureRecorder) Close(context.Context) error { return nil }

func (r *captureRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// fakeTranscriber 返回固定转写文本。
type fakeTranscriber struct {
	text string
	err  error
	urls []string
}

func (f *fakeTranscriber) TranscribeURL(_ context.Context, mediaURL string) (string, error) {
	f.urls = append(f.urls, mediaURL)
	return f.text, f.err
}
