package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour, // Embedding 结果相对稳定，可以缓存更长时间
		KeyPrefix: "faqbot:emb:",
	}
}

// CachedEmbeddingProvider 提供 Embedding 缓存功能的包装器。
// 缓存读写失败只记录日志，不影响底层供应商调用。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    *goredis.Client
	config   *EmbeddingCacheConfig
}

var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis *goredis.Client,
	config *EmbeddingCacheConfig,
) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// cacheKey 基于文本内容生成缓存键。
func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// enabled 判断缓存是否可用。
func (c *CachedEmbeddingProvider) enabled() bool {
	return c.config.Enabled && c.redis != nil
}

// lookup 尝试读取缓存，未命中或损坏时返回 nil。
func (c *CachedEmbeddingProvider) lookup(ctx context.Context, key string) []float32 {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("redis get error, falling back to provider", "error", err.Error())
		}
		return nil
	}

	var embedding []float32
	if err := sonic.Unmarshal(data, &embedding); err != nil {
		// 损坏的缓存条目直接删除
		logger.Warnw("failed to unmarshal cached embedding, deleting", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}
	return embedding
}

// save 将向量写入缓存。
func (c *CachedEmbeddingProvider) save(ctx context.Context, key string, embedding []float32) {
	data, err := sonic.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error(), "key", key)
	}
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if !c.enabled() {
		return c.provider.EmbedSingle(ctx, text)
	}

	key := c.cacheKey(text)
	if embedding := c.lookup(ctx, key); embedding != nil {
		logger.Debugw("embedding cache hit", "text_length", len(text))
		return embedding, nil
	}

	embedding, err := c.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	c.save(ctx, key, embedding)
	return embedding, nil
}

// Embed 批量生成 Embedding（带缓存）。
// 只有未命中的文本会发给底层供应商，结果按原始顺序返回。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.enabled() {
		return c.provider.Embed(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		if embedding := c.lookup(ctx, c.cacheKey(text)); embedding != nil {
			embeddings[i] = embedding
			continue
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		logger.Infow("all embeddings from cache", "total", len(texts))
		return embeddings, nil
	}

	logger.Infow("embedding cache miss (batch)", "total", len(texts), "uncached", len(missTexts))
	computed, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for i, idx := range missIndices {
		embeddings[idx] = computed[i]
		c.save(ctx, c.cacheKey(missTexts[i]), computed[i])
	}
	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}
