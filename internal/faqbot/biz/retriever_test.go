package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/faqbot/internal/faqbot/store"
)

func TestRetrieveUnknownBusinessReturnsEmpty(t *testing.T) {
	retriever := NewRetriever(store.NewKnowledgeStore(nil), &fakeEmbedder{}, nil)

	results, err := retriever.Retrieve(context.Background(), "nobody", "when do you open")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveBlankQueryReturnsEmpty(t *testing.T) {
	retriever := NewRetriever(store.NewKnowledgeStore(nil), &fakeEmbedder{}, nil)

	results, err := retriever.Retrieve(context.Background(), "biz", "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	knowledge := store.NewKnowledgeStore(nil)
	ingestor := NewIngestor(knowledge, &fakeEmbedder{}, &IngestorConfig{ChunkSize: 60, ChunkOverlap: 0})
	ctx := context.Background()

	text := "We open at nine every morning and close at six.\n\n" +
		"Delivery covers the entire city for a small fee.\n\n" +
		"Gift cards are available at the counter."
	_, err := ingestor.Ingest(ctx, "biz-1", text)
	require.NoError(t, err)

	retriever := NewRetriever(knowledge, &fakeEmbedder{}, &RetrieverConfig{TopK: 3})
	results, err := retriever.Retrieve(ctx, "biz-1", "what time do you open every morning")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// 命中块包含营业时间内容且排在首位
	assert.Contains(t, results[0].Text, "open at nine")
	assert.Greater(t, results[0].Score, float32(0))

	// 分数按降序排列
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRetrieveSelfMatchScore(t *testing.T) {
	knowledge := store.NewKnowledgeStore(nil)
	ingestor := NewIngestor(knowledge, &fakeEmbedder{}, &IngestorConfig{ChunkSize: 200, ChunkOverlap: 0})
	ctx := context.Background()

	text := "Opening hours are nine to six on weekdays."
	_, err := ingestor.Ingest(ctx, "biz-1", text)
	require.NoError(t, err)

	retriever := NewRetriever(knowledge, &fakeEmbedder{}, &RetrieverConfig{TopK: 1})
	results, err := retriever.Retrieve(ctx, "biz-1", text)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 查询与块完全相同时相似度为 1
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestRetrieveBusinessIsolation(t *testing.T) {
	knowledge := store.NewKnowledgeStore(nil)
	ingestor := NewIngestor(knowledge, &fakeEmbedder{}, &IngestorConfig{ChunkSize: 200, ChunkOverlap: 0})
	ctx := context.Background()

	_, err := ingestor.Ingest(ctx, "biz-a", "We sell flowers and plants.")
	require.NoError(t, err)
	_, err = ingestor.Ingest(ctx, "biz-b", "We repair bicycles and scooters.")
	require.NoError(t, err)

	retriever := NewRetriever(knowledge, &fakeEmbedder{}, &RetrieverConfig{TopK: 5})
	results, err := retriever.Retrieve(ctx, "biz-a", "do you repair bicycles")
	require.NoError(t, err)

	for _, r := range results {
		assert.NotContains(t, r.Text, "bicycles")
	}
}
