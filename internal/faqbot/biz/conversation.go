package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/internal/model"
	"github.com/kart-io/faqbot/internal/pkg/textutil"
)

// contextSeparator 拼接多个检索块时使用的分隔线。
const contextSeparator = "\n---\n"

// recentTurnsForQuery 参与检索查询改写的最近历史轮次数。
const recentTurnsForQuery = 2

// conversationState 对话处理阶段。
type conversationState int

const (
	// stateRetrieving 检索阶段：改写查询并检索知识库。
	stateRetrieving conversationState = iota
	// stateGenerating 生成阶段：基于检索上下文生成回答。
	stateGenerating
	// stateDone 处理完成。
	stateDone
)

// Conversation 负责单条用户消息的两阶段编排。
// Conversation 本身不持有任何跨调用状态，历史由调用方读取并回写。
type Conversation struct {
	retriever *Retriever
	generator *Generator
}

// NewConversation 创建对话编排器实例。
func NewConversation(retriever *Retriever, generator *Generator) *Conversation {
	return &Conversation{
		retriever: retriever,
		generator: generator,
	}
}

// Respond 处理一条用户消息并返回回答。
// history 是该用户已有的对话历史，由调用方负责追加本轮问答。
func (c *Conversation) Respond(ctx context.Context, businessID, query string, history []model.Turn) (*model.QueryResult, error) {
	result := &model.QueryResult{}

	var matches []store.SearchResult
	for state := stateRetrieving; state != stateDone; {
		switch state {
		case stateRetrieving:
			retrieved, err := c.retriever.Retrieve(ctx, businessID, contextualQuery(history, query))
			if err != nil {
				return nil, fmt.Errorf("retrieve context: %w", err)
			}
			matches = retrieved
			state = stateGenerating

		case stateGenerating:
			contextText := joinContext(matches)
			// 知识库为空或无命中时仍然生成，模板会引导模型给出兜底回复
			answer := c.generator.Generate(ctx, contextText, renderHistory(history), query)

			result.Answer = answer
			result.Context = contextText
			result.Matches = toMatches(matches)
			state = stateDone
		}
	}

	logger.Debugw("conversation answered",
		"business_id", businessID, "matches", len(result.Matches),
		"answer_preview", textutil.TruncateString(result.Answer, 64))
	return result, nil
}

// contextualQuery 将最近两轮历史拼入查询，让追问也能检索到相关内容。
func contextualQuery(history []model.Turn, query string) string {
	if len(history) == 0 {
		return query
	}

	start := len(history) - recentTurnsForQuery
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for _, turn := range history[start:] {
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString(query)
	return b.String()
}

// joinContext 拼接检索到的文档块作为生成上下文。
func joinContext(matches []store.SearchResult) string {
	if len(matches) == 0 {
		return ""
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, contextSeparator)
}

// renderHistory 将对话历史渲染为提示词中的文本形式。
func renderHistory(history []model.Turn) string {
	if len(history) == 0 {
		return "(no previous conversation)"
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}
	return b.String()
}

// toMatches 转换检索结果为对外的数据模型。
func toMatches(results []store.SearchResult) []model.ChunkMatch {
	if len(results) == 0 {
		return nil
	}
	matches := make([]model.ChunkMatch, len(results))
	for i, r := range results {
		matches[i] = model.ChunkMatch{
			Position: r.Position,
			Text:     r.Text,
			Score:    r.Score,
		}
	}
	return matches
}
