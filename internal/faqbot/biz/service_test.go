package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/faqbot/internal/faqbot/metadata"
	"github.com/kart-io/faqbot/internal/faqbot/session"
	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/model"
	"github.com/kart-io/faqbot/pkg/transcribe"
)

func newTestService(t *testing.T, chat *fakeChat, transcriber transcribe.Transcriber) (*FAQService, session.Store) {
	t.Helper()

	sessions := session.NewMemoryStore(nil)
	svc := NewFAQService(
		store.NewKnowledgeStore(nil),
		&fakeEmbedder{},
		chat,
		sessions,
		nil, nil, transcriber, nil,
		&ServiceConfig{IngestorConfig: &IngestorConfig{ChunkSize: 80, ChunkOverlap: 0}},
	)
	return svc, sessions
}

func TestHandleMessageGrowsSession(t *testing.T) {
	chat := &fakeChat{answer: "We open at nine."}
	svc, sessions := newTestService(t, chat, nil)
	ctx := context.Background()

	_, err := svc.IngestDocument(ctx, "biz-1", "faq.txt", "We open at nine every morning.")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		reply := svc.HandleMessage(ctx, &InboundMessage{
			UserKey:    "whatsapp:+1000",
			BusinessID: "biz-1",
			Body:       fmt.Sprintf("question %d", i),
		})
		assert.Equal(t, "We open at nine.", reply)

		// 每条消息追加一问一答两轮
		history, err := sessions.Get(ctx, "whatsapp:+1000")
		require.NoError(t, err)
		require.Len(t, history, i*2)
		assert.Equal(t, model.RoleUser, history[i*2-2].Role)
		assert.Equal(t, fmt.Sprintf("question %d", i), history[i*2-2].Content)
		assert.Equal(t, model.RoleAssistant, history[i*2-1].Role)
	}
}

func TestHandleMessageEmptyBody(t *testing.T) {
	svc, sessions := newTestService(t, &fakeChat{answer: "ignored"}, nil)
	ctx := context.Background()

	reply := svc.HandleMessage(ctx, &InboundMessage{
		UserKey:    "whatsapp:+1001",
		BusinessID: "biz-1",
		Body:       "   ",
	})
	assert.Equal(t, FallbackEmptyMessage, reply)

	// 空消息不写入会话
	history, err := sessions.Get(ctx, "whatsapp:+1001")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleMessageVoice(t *testing.T) {
	chat := &fakeChat{answer: "We open at nine."}
	transcriber := &fakeTranscriber{text: "what time do you open"}
	svc, sessions := newTestService(t, chat, transcriber)
	ctx := context.Background()

	reply := svc.HandleMessage(ctx, &InboundMessage{
		UserKey:    "whatsapp:+1002",
		BusinessID: "biz-1",
		MediaURL:   "https://media.example.com/voice.ogg",
	})

	require.Equal(t, []string{"https://media.example.com/voice.ogg"}, transcriber.urls)
	assert.Equal(t, "I heard you say: \"what time do you open\"\n\nWe open at nine.", reply)

	// 会话中记录的是转写文本
	history, err := sessions.Get(ctx, "whatsapp:+1002")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "what time do you open", history[0].Content)
}

func TestHandleMessageTranscribeError(t *testing.T) {
	transcriber := &fakeTranscriber{err: errors.New("download failed")}
	svc, _ := newTestService(t, &fakeChat{answer: "ignored"}, transcriber)

	reply := svc.HandleMessage(context.Background(), &InboundMessage{
		UserKey:    "whatsapp:+1003",
		BusinessID: "biz-1",
		MediaURL:   "https://media.example.com/voice.ogg",
	})
	assert.Equal(t, FallbackInternal, reply)
}

func TestHandleMessageVoiceWithoutTranscriber(t *testing.T) {
	svc, _ := newTestService(t, &fakeChat{answer: "ignored"}, nil)

	reply := svc.HandleMessage(context.Background(), &InboundMessage{
		UserKey:    "whatsapp:+1004",
		BusinessID: "biz-1",
		MediaURL:   "https://media.example.com/voice.ogg",
	})
	assert.Equal(t, FallbackInternal, reply)
}

func TestAnswerDoesNotTouchSession(t *testing.T) {
	chat := &fakeChat{answer: "We open at nine."}
	svc, sessions := newTestService(t, chat, nil)
	ctx := context.Background()

	_, err := svc.IngestDocument(ctx, "biz-1", "faq.txt", "We open at nine every morning.")
	require.NoError(t, err)

	result, err := svc.Answer(ctx, "biz-1", "when do you open")
	require.NoError(t, err)
	assert.Equal(t, "We open at nine.", result.Answer)
	assert.NotEmpty(t, result.Matches)

	history, err := sessions.Get(ctx, "when do you open")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestIngestDocumentRecordsMetadata(t *testing.T) {
	meta, err := metadata.NewStore(":memory:")
	require.NoError(t, err)
	defer meta.Close()

	svc := NewFAQService(
		store.NewKnowledgeStore(nil),
		&fakeEmbedder{},
		&fakeChat{answer: "ok"},
		session.NewMemoryStore(nil),
		nil, meta, nil, nil,
		nil,
	)
	ctx := context.Background()

	count, err := svc.IngestDocument(ctx, "biz-1", "menu.pdf", "We serve coffee and cake.")
	require.NoError(t, err)

	record, err := meta.Get(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "menu.pdf", record.SourceFile)
	assert.Equal(t, count, record.ChunkCount)
	assert.False(t, record.IndexedAt.IsZero())
}

func TestIngestDocumentEmpty(t *testing.T) {
	svc, _ := newTestService(t, &fakeChat{answer: "ok"}, nil)

	_, err := svc.IngestDocument(context.Background(), "biz-1", "faq.txt", "   ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestHandleMessageLogsConversation(t *testing.T) {
	recorder := &captureRecorder{}
	svc := NewFAQService(
		store.NewKnowledgeStore(nil),
		&fakeEmbedder{},
		&fakeChat{answer: "We open at nine."},
		session.NewMemoryStore(nil),
		recorder, nil, nil, nil,
		nil,
	)

	svc.HandleMessage(context.Background(), &InboundMessage{
		UserKey:    "whatsapp:+1005",
		BusinessID: "biz-1",
		Body:       "when do you open",
	})

	// 没有注入专用池时日志经全局后台池异步写入
	require.Eventually(t, func() bool { return recorder.len() == 1 },
		2*time.Second, 10*time.Millisecond)

	recorder.mu.Lock()
	record := recorder.records[0]
	recorder.mu.Unlock()
	assert.Equal(t, "whatsapp:+1005", record.UserID)
	assert.Equal(t, "biz-1", record.BusinessID)
	assert.Equal(t, "when do you open", record.Query)
	assert.Equal(t, model.QueryTypeText, record.QueryType)
	assert.Equal(t, "We open at nine.", record.Answer)
}

func TestBusinessesMergesMetadataAndIndex(t *testing.T) {
	meta, err := metadata.NewStore(":memory:")
	require.NoError(t, err)
	defer meta.Close()

	knowledge := store.NewKnowledgeStore(nil)
	svc := NewFAQService(
		knowledge,
		&fakeEmbedder{},
		&fakeChat{answer: "ok"},
		session.NewMemoryStore(nil),
		nil, meta, nil, nil,
		nil,
	)
	ctx := context.Background()

	_, err = svc.IngestDocument(ctx, "biz-b", "faq.txt", "We open at nine.")
	require.NoError(t, err)

	// 直接建索引、不写元数据的商家也要出现在列表中
	ingestor := NewIngestor(knowledge, &fakeEmbedder{}, nil)
	_, err = ingestor.Ingest(ctx, "biz-a", "We repair bicycles.")
	require.NoError(t, err)

	businesses, err := svc.Businesses(ctx)
	require.NoError(t, err)
	require.Len(t, businesses, 2)

	// 按商家 ID 排序
	assert.Equal(t, "biz-a", businesses[0].BusinessID)
	assert.Empty(t, businesses[0].SourceFile)
	assert.Equal(t, "biz-b", businesses[1].BusinessID)
	assert.Equal(t, "faq.txt", businesses[1].SourceFile)
	assert.Greater(t, businesses[1].ChunkCount, 0)
}

func TestBusinessesWithoutMetadataStore(t *testing.T) {
	svc, _ := newTestService(t, &fakeChat{answer: "ok"}, nil)
	ctx := context.Background()

	_, err := svc.IngestDocument(ctx, "biz-1", "faq.txt", "We open at nine.")
	require.NoError(t, err)

	businesses, err := svc.Businesses(ctx)
	require.NoError(t, err)
	require.Len(t, businesses, 1)
	assert.Equal(t, "biz-1", businesses[0].BusinessID)
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t, &fakeChat{answer: "ok"}, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stats, "metrics")
}
