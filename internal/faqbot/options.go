package faqbot

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	logopts "github.com/kart-io/faqbot/pkg/options/logger"
)

// Options contains all FAQ service options.
type Options struct {
	// Server contains HTTP server configuration.
	Server *ServerOptions `json:"server" mapstructure:"server"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// Embedding contains embedding provider configuration.
	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`

	// Chat contains chat provider configuration.
	Chat *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	// FAQ contains retrieval configuration.
	FAQ *FAQOptions `json:"faq" mapstructure:"faq"`

	// Session contains conversation session configuration.
	Session *SessionOptions `json:"session" mapstructure:"session"`

	// Redis contains the Redis connection shared by the session store and
	// the embedding cache.
	Redis *RedisOptions `json:"redis" mapstructure:"redis"`

	// Cache contains embedding cache configuration.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`

	// Mongo contains the conversation log configuration.
	Mongo *MongoOptions `json:"mongo" mapstructure:"mongo"`

	// Whisper contains voice transcription configuration.
	Whisper *WhisperOptions `json:"whisper" mapstructure:"whisper"`
}

// ServerOptions HTTP 服务器配置。
type ServerOptions struct {
	// Addr 监听地址。
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode gin 运行模式（debug|release|test）。
	Mode string `json:"mode" mapstructure:"mode"`

	// ShutdownTimeout 优雅关闭超时时间。
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// APIKey 管理接口密钥，为空时不校验。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// MaxUploadBytes 文档上传大小上限。
	MaxUploadBytes int64 `json:"max-upload-bytes" mapstructure:"max-upload-bytes"`
}

// NewServerOptions 创建默认服务器配置。
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Addr:            ":8080",
		Mode:            "release",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
	}
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai, gemini）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI、Gemini 需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// FAQOptions contains retrieval configuration.
type FAQOptions struct {
	// ChunkSize is the size of text chunks in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// DataDir is the directory for persisted knowledge indexes.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// MetadataPath is the SQLite file for business metadata.
	MetadataPath string `json:"metadata-path" mapstructure:"metadata-path"`
}

// NewFAQOptions creates new FAQOptions with defaults.
func NewFAQOptions() *FAQOptions {
	return &FAQOptions{
		ChunkSize:    250,
		ChunkOverlap: 30,
		TopK:         3,
		DataDir:      "_output/faq-data",
		MetadataPath: "_output/faqbot.db",
	}
}

// SessionOptions 会话存储配置。
type SessionOptions struct {
	// Backend 存储后端（memory|redis）。
	Backend string `json:"backend" mapstructure:"backend"`

	// TTL 会话空闲过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// MaxSessions 内存后端的最大会话数。
	MaxSessions int `json:"max-sessions" mapstructure:"max-sessions"`

	// MaxTurns 单个会话保留的最大轮次数。
	MaxTurns int `json:"max-turns" mapstructure:"max-turns"`
}

// NewSessionOptions 创建默认会话配置。
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Backend:     "memory",
		TTL:         12 * time.Hour,
		MaxSessions: 10000,
		MaxTurns:    40,
	}
}

// RedisOptions Redis 配置。
type RedisOptions struct {
	// Host Redis 主机地址。
	Host string `json:"host" mapstructure:"host"`

	// Port Redis 端口。
	Port int `json:"port" mapstructure:"port"`

	// Password Redis 密码。
	Password string `json:"password" mapstructure:"password"`

	// Database Redis 数据库编号。
	Database int `json:"database" mapstructure:"database"`

	// PoolSize 连接池大小。
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`
}

// NewRedisOptions 创建默认 Redis 配置。
func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Host:     "localhost",
		Port:     6379,
		PoolSize: 10,
	}
}

// Addr 返回 host:port 形式的地址。
func (o *RedisOptions) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// CacheOptions Embedding 缓存配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   false,
		TTL:       24 * time.Hour,
		KeyPrefix: "faqbot:emb:",
	}
}

// MongoOptions 对话日志存储配置。
type MongoOptions struct {
	// Enabled 是否启用对话日志。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// URI Mongo 连接地址。
	URI string `json:"uri" mapstructure:"uri"`

	// Database 数据库名。
	Database string `json:"database" mapstructure:"database"`

	// Collection 集合名。
	Collection string `json:"collection" mapstructure:"collection"`
}

// NewMongoOptions 创建默认 Mongo 配置。
func NewMongoOptions() *MongoOptions {
	return &MongoOptions{
		Enabled:    false,
		URI:        "mongodb://localhost:27017",
		Database:   "faqbot",
		Collection: "conversations",
	}
}

// WhisperOptions 语音转写配置。
type WhisperOptions struct {
	// Enabled 是否启用语音转写。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// BaseURL API 基础地址，兼容 OpenAI audio API。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 转写模型。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MediaUser / MediaPass 下载媒体文件的 basic auth 凭证。
	MediaUser string `json:"media-user" mapstructure:"media-user"`
	MediaPass string `json:"media-pass" mapstructure:"media-pass"`
}

// NewWhisperOptions 创建默认转写配置。
func NewWhisperOptions() *WhisperOptions {
	return &WhisperOptions{
		Enabled: false,
		BaseURL: "https://api.openai.com/v1",
		Model:   "whisper-1",
		Timeout: 60 * time.Second,
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	// 默认 embedding 配置
	embeddingOpts := NewLLMProviderOptions()
	embeddingOpts.Model = "nomic-embed-text"

	// 默认 chat 配置
	chatOpts := NewLLMProviderOptions()
	chatOpts.Model = "llama3.1:8b"

	return &Options{
		Server:    NewServerOptions(),
		Log:       logopts.NewOptions(),
		Embedding: embeddingOpts,
		Chat:      chatOpts,
		FAQ:       NewFAQOptions(),
		Session:   NewSessionOptions(),
		Redis:     NewRedisOptions(),
		Cache:     NewCacheOptions(),
		Mongo:     NewMongoOptions(),
		Whisper:   NewWhisperOptions(),
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)
	o.addServerFlags(fs)
	o.addProviderFlags(fs, "embedding", o.Embedding)
	o.addProviderFlags(fs, "chat", o.Chat)
	o.addFAQFlags(fs)
	o.addSessionFlags(fs)
	o.addRedisFlags(fs)
	o.addCacheFlags(fs)
	o.addMongoFlags(fs)
	o.addWhisperFlags(fs)
}

func (o *Options) addServerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP server listen address")
	fs.StringVar(&o.Server.Mode, "server.mode", o.Server.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout")
	fs.StringVar(&o.Server.APIKey, "server.api-key", o.Server.APIKey, "API key for management routes (empty disables the check)")
	fs.Int64Var(&o.Server.MaxUploadBytes, "server.max-upload-bytes", o.Server.MaxUploadBytes, "Maximum document upload size in bytes")
}

func (o *Options) addProviderFlags(fs *pflag.FlagSet, prefix string, opts *LLMProviderOptions) {
	fs.StringVar(&opts.Provider, prefix+".provider", opts.Provider, "Provider name (ollama, openai, gemini)")
	fs.StringVar(&opts.BaseURL, prefix+".base-url", opts.BaseURL, "Provider API base URL")
	fs.StringVar(&opts.APIKey, prefix+".api-key", opts.APIKey, "Provider API key")
	fs.StringVar(&opts.Model, prefix+".model", opts.Model, "Model name")
	fs.DurationVar(&opts.Timeout, prefix+".timeout", opts.Timeout, "Request timeout")
	fs.IntVar(&opts.MaxRetries, prefix+".max-retries", opts.MaxRetries, "Max retries")
}

func (o *Options) addFAQFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.FAQ.ChunkSize, "faq.chunk-size", o.FAQ.ChunkSize, "Size of text chunks in runes")
	fs.IntVar(&o.FAQ.ChunkOverlap, "faq.chunk-overlap", o.FAQ.ChunkOverlap, "Overlap between chunks in runes")
	fs.IntVar(&o.FAQ.TopK, "faq.top-k", o.FAQ.TopK, "Number of chunks retrieved per query")
	fs.StringVar(&o.FAQ.DataDir, "faq.data-dir", o.FAQ.DataDir, "Directory for persisted knowledge indexes")
	fs.StringVar(&o.FAQ.MetadataPath, "faq.metadata-path", o.FAQ.MetadataPath, "SQLite file for business metadata")
}

func (o *Options) addSessionFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Session.Backend, "session.backend", o.Session.Backend, "Session store backend (memory, redis)")
	fs.DurationVar(&o.Session.TTL, "session.ttl", o.Session.TTL, "Session idle expiry")
	fs.IntVar(&o.Session.MaxSessions, "session.max-sessions", o.Session.MaxSessions, "Maximum sessions held in memory")
	fs.IntVar(&o.Session.MaxTurns, "session.max-turns", o.Session.MaxTurns, "Maximum turns kept per session")
}

func (o *Options) addRedisFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Redis.Host, "redis.host", o.Redis.Host, "Redis host")
	fs.IntVar(&o.Redis.Port, "redis.port", o.Redis.Port, "Redis port")
	fs.StringVar(&o.Redis.Password, "redis.password", o.Redis.Password, "Redis password")
	fs.IntVar(&o.Redis.Database, "redis.database", o.Redis.Database, "Redis database number")
	fs.IntVar(&o.Redis.PoolSize, "redis.pool-size", o.Redis.PoolSize, "Redis connection pool size")
}

func (o *Options) addCacheFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Enable embedding cache")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Embedding cache TTL")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Embedding cache key prefix")
}

func (o *Options) addMongoFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Mongo.Enabled, "mongo.enabled", o.Mongo.Enabled, "Enable conversation logging")
	fs.StringVar(&o.Mongo.URI, "mongo.uri", o.Mongo.URI, "Mongo connection URI")
	fs.StringVar(&o.Mongo.Database, "mongo.database", o.Mongo.Database, "Mongo database name")
	fs.StringVar(&o.Mongo.Collection, "mongo.collection", o.Mongo.Collection, "Mongo collection name")
}

func (o *Options) addWhisperFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Whisper.Enabled, "whisper.enabled", o.Whisper.Enabled, "Enable voice transcription")
	fs.StringVar(&o.Whisper.BaseURL, "whisper.base-url", o.Whisper.BaseURL, "Whisper API base URL")
	fs.StringVar(&o.Whisper.APIKey, "whisper.api-key", o.Whisper.APIKey, "Whisper API key")
	fs.StringVar(&o.Whisper.Model, "whisper.model", o.Whisper.Model, "Whisper model name")
	fs.DurationVar(&o.Whisper.Timeout, "whisper.timeout", o.Whisper.Timeout, "Whisper request timeout")
	fs.StringVar(&o.Whisper.MediaUser, "whisper.media-user", o.Whisper.MediaUser, "Basic auth user for media downloads")
	fs.StringVar(&o.Whisper.MediaPass, "whisper.media-pass", o.Whisper.MediaPass, "Basic auth password for media downloads")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if o.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := o.validateLLMProvider(o.Embedding, "embedding"); err != nil {
		return err
	}
	if err := o.validateLLMProvider(o.Chat, "chat"); err != nil {
		return err
	}
	if o.FAQ.ChunkSize <= 0 {
		return fmt.Errorf("faq.chunk-size must be positive")
	}
	if o.FAQ.ChunkOverlap < 0 || o.FAQ.ChunkOverlap >= o.FAQ.ChunkSize {
		return fmt.Errorf("faq.chunk-overlap must be in [0, chunk-size)")
	}
	if o.FAQ.TopK <= 0 {
		return fmt.Errorf("faq.top-k must be positive")
	}
	if o.Session.Backend != "memory" && o.Session.Backend != "redis" {
		return fmt.Errorf("session.backend must be memory or redis")
	}
	if o.Whisper.Enabled && o.Whisper.APIKey == "" {
		return fmt.Errorf("whisper.api-key is required when whisper is enabled")
	}
	return nil
}

func (o *Options) validateLLMProvider(opts *LLMProviderOptions, prefix string) error {
	if opts.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if opts.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	// OpenAI 与 Gemini 供应商需要 API key
	if (opts.Provider == "openai" || opts.Provider == "gemini") && opts.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for %s provider", prefix, opts.Provider)
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// Complete completes the options.
func (o *Options) Complete() error {
	return o.Log.Complete()
}
