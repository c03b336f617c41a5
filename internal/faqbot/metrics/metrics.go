// Package metrics 提供 faqbot 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FAQMetrics faqbot 服务业务指标。
type FAQMetrics struct {
	// 消息指标
	messagesTotal uint64 // 总消息数
	messagesVoice uint64 // 语音消息数
	messagesError uint64 // 处理失败数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalDuration float64 // 检索总耗时（秒）
	retrievalErrors   uint64  // 检索错误次数

	// LLM 调用指标
	llmCallsTotal    uint64  // LLM 总调用次数
	llmCallsDuration float64 // LLM 调用总耗时（秒）
	llmFallbacks     uint64  // 返回降级回复的次数

	// 知识库指标
	ingestsTotal  uint64 // 入库次数
	chunksIndexed uint64 // 已索引分块数
	ingestErrors  uint64 // 入库错误次数

	startTime  time.Time
	durationMu sync.Mutex
}

// globalFAQMetrics 全局指标实例。
var (
	globalFAQMetrics *FAQMetrics
	faqMetricsOnce   sync.Once
)

// GetFAQMetrics 获取全局指标实例。
func GetFAQMetrics() *FAQMetrics {
	faqMetricsOnce.Do(func() {
		globalFAQMetrics = &FAQMetrics{
			startTime: time.Now(),
		}
	})
	return globalFAQMetrics
}

// RecordMessage 记录一条入站消息。
func (m *FAQMetrics) RecordMessage(voice bool, err error) {
	atomic.AddUint64(&m.messagesTotal, 1)
	if voice {
		atomic.AddUint64(&m.messagesVoice, 1)
	}
	if err != nil {
		atomic.AddUint64(&m.messagesError, 1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *FAQMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录 LLM 调用。
func (m *FAQMetrics) RecordLLMCall(duration time.Duration, fallback bool) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if fallback {
		atomic.AddUint64(&m.llmFallbacks, 1)
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordIngest 记录一次知识库入库。
func (m *FAQMetrics) RecordIngest(chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.ingestErrors, 1)
		return
	}
	atomic.AddUint64(&m.ingestsTotal, 1)
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// Export 导出 Prometheus 格式指标。
func (m *FAQMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	var sb strings.Builder
	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}
	gauge := func(name, help string, value float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %.6f\n\n", prefix, name, value))
	}

	counter("messages_total", "Total number of inbound messages.", atomic.LoadUint64(&m.messagesTotal))
	counter("messages_voice_total", "Number of voice messages.", atomic.LoadUint64(&m.messagesVoice))
	counter("messages_errors_total", "Number of message processing errors.", atomic.LoadUint64(&m.messagesError))

	counter("retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))
	gauge("retrieval_duration_seconds_total", "Total retrieval duration.", retrievalDuration)

	counter("llm_calls_total", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	counter("llm_fallbacks_total", "Number of fallback answers returned.", atomic.LoadUint64(&m.llmFallbacks))
	gauge("llm_calls_duration_seconds_total", "Total LLM call duration.", llmDuration)

	counter("ingests_total", "Total number of knowledge base ingests.", atomic.LoadUint64(&m.ingestsTotal))
	counter("chunks_indexed_total", "Total chunks indexed.", atomic.LoadUint64(&m.chunksIndexed))
	counter("ingest_errors_total", "Number of ingest errors.", atomic.LoadUint64(&m.ingestErrors))

	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *FAQMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrieval := 0.0
	if retrievalTotal > 0 {
		avgRetrieval = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLM := 0.0
	if llmTotal > 0 {
		avgLLM = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"messages": map[string]interface{}{
			"total":  atomic.LoadUint64(&m.messagesTotal),
			"voice":  atomic.LoadUint64(&m.messagesVoice),
			"errors": atomic.LoadUint64(&m.messagesError),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrieval,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLM,
			"fallbacks":           atomic.LoadUint64(&m.llmFallbacks),
		},
		"ingest": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.ingestsTotal),
			"chunks_indexed": atomic.LoadUint64(&m.chunksIndexed),
			"errors":         atomic.LoadUint64(&m.ingestErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *FAQMetrics) Reset() {
	atomic.StoreUint64(&m.messagesTotal, 0)
	atomic.StoreUint64(&m.messagesVoice, 0)
	atomic.StoreUint64(&m.messagesError, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmFallbacks, 0)
	atomic.StoreUint64(&m.ingestsTotal, 0)
	atomic.StoreUint64(&m.chunksIndexed, 0)
	atomic.StoreUint64(&m.ingestErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
