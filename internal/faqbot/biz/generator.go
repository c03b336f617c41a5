package biz

import (
	"context"
	"errors"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/pkg/llm"
)

// 用户可见的降级回复，生成失败时原样返回而不是暴露内部错误。
const (
	// FallbackUnavailable 模型未配置或不可达时的回复。
	FallbackUnavailable = "The AI model is not available at the moment. Please try again later."
	// FallbackGeneration 生成过程出错时的回复。
	FallbackGeneration = "There was an issue generating a response. Please try again."
)

// defaultPromptTemplate 默认提示词模板。
// 占位符 {{context}}、{{history}}、{{question}} 在生成时替换。
const defaultPromptTemplate = `You are a friendly and helpful customer service assistant for a business.
Answer the customer's question based ONLY on the context provided below.

STRICT RULES:
- Only use information found in the context. Do not make anything up.
- If the answer is not in the context, reply exactly: "I'm sorry, I don't have that information at the moment, but our team will get back to you shortly."
- Keep answers short, friendly and conversational, suitable for a chat message.

CONTEXT:
{{context}}

CHAT HISTORY:
{{history}}

CUSTOMER QUESTION:
{{question}}`

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// PromptTemplate 提示词模板，为空时使用默认模板。
	PromptTemplate string
}

// Generator 负责基于检索上下文生成回答。
type Generator struct {
	chatProvider llm.ChatProvider
	template     string
}

// NewGenerator 创建生成器实例。chatProvider 可以为 nil，表示模型未配置。
func NewGenerator(chatProvider llm.ChatProvider, config *GeneratorConfig) *Generator {
	template := defaultPromptTemplate
	if config != nil && config.PromptTemplate != "" {
		template = config.PromptTemplate
	}
	return &Generator{
		chatProvider: chatProvider,
		template:     template,
	}
}

// Generate 根据上下文、历史与问题生成回答。
// 任何失败都映射为固定的降级回复，错误只记录日志，调用方总能拿到可发送的文本。
func (g *Generator) Generate(ctx context.Context, contextText, historyText, question string) string {
	if g.chatProvider == nil {
		logger.Warnw("chat provider not configured, returning fallback")
		return FallbackUnavailable
	}

	prompt := strings.ReplaceAll(g.template, "{{context}}", contextText)
	prompt = strings.ReplaceAll(prompt, "{{history}}", historyText)
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)

	answer, err := g.chatProvider.Generate(ctx, prompt, "")
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			logger.Errorw("chat provider unavailable", "error", err.Error())
			return FallbackUnavailable
		}
		logger.Errorw("answer generation failed", "error", err.Error())
		return FallbackGeneration
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Warnw("chat provider returned empty answer")
		return FallbackGeneration
	}
	return answer
}
