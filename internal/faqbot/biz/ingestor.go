package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/pkg/textutil"
	"github.com/kart-io/faqbot/pkg/llm"
)

// ErrEmptyDocument 表示待入库文档为空或仅含空白字符。
var ErrEmptyDocument = errors.New("biz: document is empty")

// IngestorConfig 知识库构建配置。
type IngestorConfig struct {
	// ChunkSize 文本块大小（Unicode 字符数）。
	ChunkSize int
	// ChunkOverlap 相邻块的重叠大小。
	ChunkOverlap int
	// EmbedBatchSize 单次嵌入请求的最大文本数。
	EmbedBatchSize int
}

// DefaultIngestorConfig 返回默认配置。
func DefaultIngestorConfig() *IngestorConfig {
	return &IngestorConfig{
		ChunkSize:      250,
		ChunkOverlap:   30,
		EmbedBatchSize: 64,
	}
}

// Ingestor 负责将商家文档构建为可检索的知识库。
type Ingestor struct {
	knowledge     store.KnowledgeStore
	embedProvider llm.EmbeddingProvider
	config        *IngestorConfig
}

// NewIngestor 创建知识库构建器实例。
func NewIngestor(knowledge store.KnowledgeStore, embedProvider llm.EmbeddingProvider, config *IngestorConfig) *Ingestor {
	if config == nil {
		config = DefaultIngestorConfig()
	}
	return &Ingestor{
		knowledge:     knowledge,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Ingest 为商家重建知识库并返回文档块数量。
// 旧知识库被整体替换，重复入库同一文本得到相同结果。
func (i *Ingestor) Ingest(ctx context.Context, businessID, text string) (int, error) {
	if businessID == "" {
		return 0, errors.New("biz: empty business id")
	}
	if textutil.IsBlank(text) {
		return 0, ErrEmptyDocument
	}

	// 1. 分割文本
	chunkTexts := textutil.SplitIntoChunks(text, i.config.ChunkSize, i.config.ChunkOverlap)
	if len(chunkTexts) == 0 {
		return 0, ErrEmptyDocument
	}
	logger.Infow("document split", "business_id", businessID, "chunks", len(chunkTexts))

	// 2. 批量生成嵌入
	vectors := make([][]float32, 0, len(chunkTexts))
	batchSize := i.config.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(chunkTexts)
	}
	for start := 0; start < len(chunkTexts); start += batchSize {
		end := start + batchSize
		if end > len(chunkTexts) {
			end = len(chunkTexts)
		}

		embeddings, err := i.embedProvider.Embed(ctx, chunkTexts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(embeddings) != end-start {
			return 0, fmt.Errorf("embed chunks %d-%d: got %d embeddings for %d texts",
				start, end, len(embeddings), end-start)
		}
		vectors = append(vectors, embeddings...)
	}

	// 3. 归一化后建索引，内积检索即余弦相似度
	for idx, v := range vectors {
		vectors[idx] = textutil.NormalizeL2(v)
	}

	chunks := make([]store.Chunk, len(chunkTexts))
	for idx, text := range chunkTexts {
		chunks[idx] = store.Chunk{Position: idx, Text: text}
	}

	// 4. 原子替换商家知识库
	if err := i.knowledge.Replace(ctx, businessID, vectors, chunks); err != nil {
		return 0, fmt.Errorf("replace knowledge base: %w", err)
	}

	return len(chunks), nil
}
