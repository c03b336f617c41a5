package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/model"
)

func newTestConversation(t *testing.T, chat *fakeChat, documents map[string]string) *Conversation {
	t.Helper()

	knowledge := store.NewKnowledgeStore(nil)
	ingestor := NewIngestor(knowledge, &fakeEmbedder{}, &IngestorConfig{ChunkSize: 60, ChunkOverlap: 0})
	for businessID, text := range documents {
		_, err := ingestor.Ingest(context.Background(), businessID, text)
		require.NoError(t, err)
	}

	retriever := NewRetriever(knowledge, &fakeEmbedder{}, &RetrieverConfig{TopK: 3})
	return NewConversation(retriever, NewGenerator(chat, nil))
}

func TestRespondJoinsContextWithSeparator(t *testing.T) {
	chat := &fakeChat{answer: "answer"}
	conv := newTestConversation(t, chat, map[string]string{
		"biz": "We open at nine each day.\n\nWe close at six each day.",
	})

	result, err := conv.Respond(context.Background(), "biz", "when do you open and close each day", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Matches)

	if len(result.Matches) > 1 {
		assert.Contains(t, result.Context, contextSeparator)
	}
	assert.Contains(t, chat.lastPrompt, result.Context)
}

func TestRespondEmptyKnowledgeStillGenerates(t *testing.T) {
	chat := &fakeChat{answer: "I'm sorry, I don't have that information."}
	conv := newTestConversation(t, chat, nil)

	result, err := conv.Respond(context.Background(), "unknown-biz", "do you deliver", nil)
	require.NoError(t, err)

	// 没有任何知识库时仍然调用生成，由模板引导兜底
	assert.NotEmpty(t, chat.lastPrompt)
	assert.Equal(t, "I'm sorry, I don't have that information.", result.Answer)
	assert.Empty(t, result.Matches)
	assert.Empty(t, result.Context)
}

func TestContextualQueryUsesRecentTurns(t *testing.T) {
	history := []model.Turn{
		{Role: model.RoleUser, Content: "turn one"},
		{Role: model.RoleAssistant, Content: "turn two"},
		{Role: model.RoleUser, Content: "turn three"},
		{Role: model.RoleAssistant, Content: "turn four"},
	}

	q := contextualQuery(history, "the question")
	// 只拼接最近两轮
	assert.NotContains(t, q, "turn one")
	assert.NotContains(t, q, "turn two")
	assert.Contains(t, q, "turn three")
	assert.Contains(t, q, "turn four")
	assert.Contains(t, q, "the question")

	assert.Equal(t, "bare question", contextualQuery(nil, "bare question"))
}

func TestRenderHistory(t *testing.T) {
	assert.Equal(t, "(no previous conversation)", renderHistory(nil))

	out := renderHistory([]model.Turn{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "user: hi\nassistant: hello", out)
}

func TestRespondShopHoursScenario(t *testing.T) {
	chat := &fakeChat{answer: "We open at 9am!"}
	conv := newTestConversation(t, chat, map[string]string{
		"shop": "We open at 9am and close at 6pm, Monday to Saturday.",
	})

	result, err := conv.Respond(context.Background(), "shop", "what time do you open", nil)
	require.NoError(t, err)

	require.NotEmpty(t, result.Matches)
	assert.Contains(t, result.Matches[0].Text, "open at 9am")
	assert.Greater(t, result.Matches[0].Score, float32(0))
	assert.Equal(t, "We open at 9am!", result.Answer)
}
