package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/convlog"
	"github.com/kart-io/faqbot/internal/faqbot/metadata"
	"github.com/kart-io/faqbot/internal/faqbot/metrics"
	"github.com/kart-io/faqbot/internal/faqbot/session"
	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/model"
	"github.com/kart-io/faqbot/pkg/llm"
	"github.com/kart-io/faqbot/pkg/pool"
	"github.com/kart-io/faqbot/pkg/transcribe"
)

// FallbackInternal 消息处理链路出现意外错误时的回复。
const FallbackInternal = "I'm sorry, I'm having a little trouble right now. Please try your question again in a moment."

// FallbackEmptyMessage 收到空消息时的回复。
const FallbackEmptyMessage = "I didn't catch that. Could you type your question again?"

// heardPrefixFormat 语音消息回复的前缀，让用户确认转写结果。
const heardPrefixFormat = "I heard you say: \"%s\"\n\n"

// Service 定义 FAQ 服务接口。
type Service interface {
	// IngestDocument 为商家重建知识库，返回文档块数量。
	IngestDocument(ctx context.Context, businessID, sourceFile, text string) (int, error)
	// Answer 回答一个问题，不读写会话历史（测试接口用）。
	Answer(ctx context.Context, businessID, question string) (*model.QueryResult, error)
	// HandleMessage 处理一条 webhook 消息，维护会话并记录对话日志。
	HandleMessage(ctx context.Context, msg *InboundMessage) string
	// Analytics 查询商家的对话统计。
	Analytics(ctx context.Context, businessID string, recentLimit int) (*model.Analytics, error)
	// Businesses 列出已知商家及其索引元数据。
	Businesses(ctx context.Context) ([]model.Business, error)
	// Stats 返回服务运行统计。
	Stats(ctx context.Context) (map[string]any, error)
}

// InboundMessage 一条入站的 webhook 消息。
type InboundMessage struct {
	// UserKey 发送者标识（如 whatsapp:+8613800000000）。
	UserKey string
	// BusinessID 消息所属商家。
	BusinessID string
	// Body 文本内容，语音消息时为空。
	Body string
	// MediaURL 语音媒体地址，非语音消息时为空。
	MediaURL string
}

// FAQService 组合知识库、检索、生成、会话与日志，提供完整的 FAQ 服务。
type FAQService struct {
	knowledge    store.KnowledgeStore
	ingestor     *Ingestor
	conversation *Conversation
	sessions     session.Store
	recorder     convlog.Recorder
	metadata     *metadata.Store
	transcriber  transcribe.Transcriber
	background   *pool.Pool
	metrics      *metrics.FAQMetrics
}

var _ Service = (*FAQService)(nil)

// ServiceConfig FAQ 服务配置。
type ServiceConfig struct {
	IngestorConfig  *IngestorConfig
	RetrieverConfig *RetrieverConfig
	GeneratorConfig *GeneratorConfig
}

// NewFAQService 创建 FAQ 服务实例。
// recorder、meta、transcriber、background 均可为 nil，对应能力自动退化。
func NewFAQService(
	knowledge store.KnowledgeStore,
	embedProvider llm.EmbeddingProvider,
	chatProvider llm.ChatProvider,
	sessions session.Store,
	recorder convlog.Recorder,
	meta *metadata.Store,
	transcriber transcribe.Transcriber,
	background *pool.Pool,
	config *ServiceConfig,
) *FAQService {
	if config == nil {
		config = &ServiceConfig{}
	}
	if recorder == nil {
		recorder = convlog.NopRecorder{}
	}

	ingestor := NewIngestor(knowledge, embedProvider, config.IngestorConfig)
	retriever := NewRetriever(knowledge, embedProvider, config.RetrieverConfig)
	generator := NewGenerator(chatProvider, config.GeneratorConfig)

	return &FAQService{
		knowledge:    knowledge,
		ingestor:     ingestor,
		conversation: NewConversation(retriever, generator),
		sessions:     sessions,
		recorder:     recorder,
		metadata:     meta,
		transcriber:  transcriber,
		background:   background,
		metrics:      metrics.GetFAQMetrics(),
	}
}

// IngestDocument 为商家重建知识库，返回文档块数量。
func (s *FAQService) IngestDocument(ctx context.Context, businessID, sourceFile, text string) (int, error) {
	count, err := s.ingestor.Ingest(ctx, businessID, text)
	s.metrics.RecordIngest(count, err)
	if err != nil {
		return 0, err
	}

	if s.metadata != nil {
		if err := s.metadata.RecordIngest(ctx, businessID, sourceFile, count); err != nil {
			// 元数据只服务于管理端查询，失败不回滚已建好的索引
			logger.Warnw("failed to record ingest metadata",
				"business_id", businessID, "error", err.Error())
		}
	}

	logger.Infow("document ingested",
		"business_id", businessID, "source_file", sourceFile, "chunks", count)
	return count, nil
}

// Answer 回答一个问题，不读写会话历史。
func (s *FAQService) Answer(ctx context.Context, businessID, question string) (*model.QueryResult, error) {
	start := time.Now()
	result, err := s.conversation.Respond(ctx, businessID, question, nil)
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLLMCall(time.Since(start), isFallback(result.Answer))
	return result, nil
}

// HandleMessage 处理一条 webhook 消息。
// 总是返回可直接回复用户的文本，内部错误映射为固定的道歉话术。
func (s *FAQService) HandleMessage(ctx context.Context, msg *InboundMessage) string {
	voice := msg.MediaURL != ""

	reply, transcription, err := s.handleMessage(ctx, msg)
	s.metrics.RecordMessage(voice, err)
	if err != nil {
		logger.Errorw("message handling failed",
			"user_key", msg.UserKey, "business_id", msg.BusinessID, "error", err.Error())
		return FallbackInternal
	}

	queryType := model.QueryTypeText
	if voice {
		queryType = model.QueryTypeVoice
	}
	s.logConversation(&model.ConversationRecord{
		UserID:        msg.UserKey,
		BusinessID:    msg.BusinessID,
		Query:         firstNonEmpty(transcription, msg.Body),
		QueryType:     queryType,
		Transcription: transcription,
		Answer:        reply,
	})

	return reply
}

// handleMessage 是 HandleMessage 的主体，返回回复文本与语音转写结果。
func (s *FAQService) handleMessage(ctx context.Context, msg *InboundMessage) (reply, transcription string, err error) {
	question := strings.TrimSpace(msg.Body)

	// 1. 语音消息先转写
	if msg.MediaURL != "" {
		if s.transcriber == nil {
			return "", "", fmt.Errorf("voice message received but transcriber not configured")
		}
		transcription, err = s.transcriber.TranscribeURL(ctx, msg.MediaURL)
		if err != nil {
			return "", "", fmt.Errorf("transcribe voice message: %w", err)
		}
		question = transcription
	}

	if question == "" {
		return FallbackEmptyMessage, transcription, nil
	}

	// 2. 读取会话历史并生成回答
	history, err := s.sessions.Get(ctx, msg.UserKey)
	if err != nil {
		return "", "", fmt.Errorf("load session: %w", err)
	}

	start := time.Now()
	result, err := s.conversation.Respond(ctx, msg.BusinessID, question, history)
	s.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return "", "", fmt.Errorf("answer question: %w", err)
	}
	s.metrics.RecordLLMCall(time.Since(start), isFallback(result.Answer))

	// 3. 回写本轮问答
	err = s.sessions.Update(ctx, msg.UserKey, func(history []model.Turn) []model.Turn {
		return append(history,
			model.Turn{Role: model.RoleUser, Content: question},
			model.Turn{Role: model.RoleAssistant, Content: result.Answer},
		)
	})
	if err != nil {
		// 历史丢失只影响后续追问的上下文，不影响本次回复
		logger.Warnw("failed to update session",
			"user_key", msg.UserKey, "error", err.Error())
	}

	reply = result.Answer
	if transcription != "" {
		reply = fmt.Sprintf(heardPrefixFormat, transcription) + reply
	}
	return reply, transcription, nil
}

// logConversation 通过后台池异步写入对话日志，不阻塞回复。
func (s *FAQService) logConversation(record *model.ConversationRecord) {
	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.recorder.Log(ctx, record); err != nil {
			logger.Warnw("failed to log conversation",
				"business_id", record.BusinessID, "error", err.Error())
		}
	}

	submit := pool.SubmitBackground
	if s.background != nil {
		submit = s.background.Submit
	}
	if err := submit(write); err != nil {
		logger.Warnw("failed to submit conversation log task", "error", err.Error())
	}
}

// Analytics 查询商家的对话统计。
func (s *FAQService) Analytics(ctx context.Context, businessID string, recentLimit int) (*model.Analytics, error) {
	return s.recorder.Analytics(ctx, businessID, recentLimit)
}

// Businesses 列出已知商家及其索引元数据。
// 已建索引但缺少元数据记录的商家也会列出，只含商家 ID。
func (s *FAQService) Businesses(ctx context.Context) ([]model.Business, error) {
	var businesses []model.Business
	known := make(map[string]bool)

	if s.metadata != nil {
		list, err := s.metadata.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list business metadata: %w", err)
		}
		businesses = list
		for _, b := range list {
			known[b.BusinessID] = true
		}
	}

	ids, err := s.knowledge.Businesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed businesses: %w", err)
	}
	for _, id := range ids {
		if !known[id] {
			businesses = append(businesses, model.Business{BusinessID: id})
		}
	}

	sort.Slice(businesses, func(i, j int) bool {
		return businesses[i].BusinessID < businesses[j].BusinessID
	})
	return businesses, nil
}

// Stats 返回服务运行统计。
func (s *FAQService) Stats(_ context.Context) (map[string]any, error) {
	stats := map[string]any{
		"metrics": s.metrics.Stats(),
	}
	if s.background != nil {
		poolStats := s.background.Stats()
		stats["background_pool"] = map[string]any{
			"submitted": poolStats.SubmittedTasks,
			"completed": poolStats.CompletedTasks,
			"rejected":  poolStats.RejectedTasks,
		}
	}
	return stats, nil
}

// isFallback 判断回答是否为降级回复。
func isFallback(answer string) bool {
	return answer == FallbackUnavailable || answer == FallbackGeneration
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
