package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/pkg/textutil"
	"github.com/kart-io/faqbot/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 返回的结果数量。
	TopK int
}

// DefaultRetrieverConfig 返回默认配置。
func DefaultRetrieverConfig() *RetrieverConfig {
	return &RetrieverConfig{TopK: 3}
}

// Retriever 负责在商家知识库中做相似度检索。
type Retriever struct {
	knowledge     store.KnowledgeStore
	embedProvider llm.EmbeddingProvider
	config        *RetrieverConfig
}

// NewRetriever 创建检索器实例。
func NewRetriever(knowledge store.KnowledgeStore, embedProvider llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = DefaultRetrieverConfig()
	}
	return &Retriever{
		knowledge:     knowledge,
		embedProvider: embedProvider,
		config:        config,
	}
}

// Retrieve 检索与查询最相关的文档块。
// 商家没有知识库时返回空结果而非错误。
func (r *Retriever) Retrieve(ctx context.Context, businessID, query string) ([]store.SearchResult, error) {
	if textutil.IsBlank(query) {
		return nil, nil
	}

	embedding, err := r.embedProvider.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embedding = textutil.NormalizeL2(embedding)

	results, err := r.knowledge.Search(ctx, businessID, embedding, r.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}

	logger.Debugw("retrieval done", "business_id", businessID, "hits", len(results))
	return results, nil
}
