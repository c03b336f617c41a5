// Package faqbot provides the FAQ bot service application.
package faqbot

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/faqbot/internal/faqbot/biz"
	"github.com/kart-io/faqbot/internal/faqbot/convlog"
	"github.com/kart-io/faqbot/internal/faqbot/handler"
	"github.com/kart-io/faqbot/internal/faqbot/metadata"
	"github.com/kart-io/faqbot/internal/faqbot/router"
	"github.com/kart-io/faqbot/internal/faqbot/session"
	"github.com/kart-io/faqbot/internal/faqbot/store"
	"github.com/kart-io/faqbot/pkg/app"
	"github.com/kart-io/faqbot/pkg/docreader"
	"github.com/kart-io/faqbot/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/faqbot/pkg/llm/gemini"
	_ "github.com/kart-io/faqbot/pkg/llm/ollama"
	_ "github.com/kart-io/faqbot/pkg/llm/openai"
	"github.com/kart-io/faqbot/pkg/pool"
	"github.com/kart-io/faqbot/pkg/transcribe"
)

const (
	appName        = "faqbot"
	appDescription = `WhatsApp FAQ Bot

A retrieval-augmented FAQ answering service for small businesses.

This server provides:
  - Per-business document ingestion (PDF and plain text)
  - Semantic retrieval over an in-memory vector index
  - LLM-backed answer generation with fixed fallback replies
  - WhatsApp webhook with voice note transcription`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the FAQ service with the given options.
func Run(opts *Options) error {
	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", appName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting FAQ service...")

	// 2. 初始化知识库存储
	blobs, err := store.NewFileBlobStore(opts.FAQ.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	knowledge := store.NewKnowledgeStore(blobs)
	logger.Infow("Knowledge store initialized", "data_dir", opts.FAQ.DataDir)

	// 3. 初始化 Redis 客户端（会话与 Embedding 缓存共用）
	var redisClient *goredis.Client
	if opts.Session.Backend == "redis" || opts.Cache.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     opts.Redis.Addr(),
			Password: opts.Redis.Password,
			DB:       opts.Redis.Database,
			PoolSize: opts.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Infow("Redis client initialized", "addr", opts.Redis.Addr())
	}

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if opts.Cache.Enabled && redisClient != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       opts.Cache.TTL,
			KeyPrefix: opts.Cache.KeyPrefix,
		})
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Embedding.Provider,
		"model", opts.Embedding.Model,
		"cache", opts.Cache.Enabled,
	)

	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", opts.Chat.Provider,
		"model", opts.Chat.Model,
	)

	// 5. 初始化会话存储
	sessionOpts := &session.Options{
		TTL:         opts.Session.TTL,
		MaxSessions: opts.Session.MaxSessions,
		MaxTurns:    opts.Session.MaxTurns,
	}
	var sessions session.Store
	if opts.Session.Backend == "redis" {
		sessions = session.NewRedisStore(redisClient, sessionOpts)
	} else {
		sessions = session.NewMemoryStore(sessionOpts)
	}
	logger.Infow("Session store initialized",
		"backend", opts.Session.Backend, "ttl", opts.Session.TTL)

	// 6. 初始化对话日志
	var recorder convlog.Recorder
	if opts.Mongo.Enabled {
		mongoRecorder, err := convlog.NewMongoRecorder(context.Background(),
			opts.Mongo.URI, opts.Mongo.Database, opts.Mongo.Collection)
		if err != nil {
			return fmt.Errorf("failed to initialize conversation log: %w", err)
		}
		recorder = mongoRecorder
		logger.Infow("Conversation log initialized", "database", opts.Mongo.Database)
	} else {
		logger.Info("Conversation log is disabled")
	}

	// 7. 初始化商家元数据存储
	meta, err := metadata.NewStore(opts.FAQ.MetadataPath)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	logger.Infow("Metadata store initialized", "path", opts.FAQ.MetadataPath)

	// 8. 初始化语音转写
	var transcriber transcribe.Transcriber
	if opts.Whisper.Enabled {
		transcriber, err = transcribe.NewWhisperTranscriber(&transcribe.WhisperConfig{
			BaseURL:   opts.Whisper.BaseURL,
			APIKey:    opts.Whisper.APIKey,
			Model:     opts.Whisper.Model,
			Timeout:   opts.Whisper.Timeout,
			MediaUser: opts.Whisper.MediaUser,
			MediaPass: opts.Whisper.MediaPass,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize transcriber: %w", err)
		}
		logger.Infow("Voice transcription initialized", "model", opts.Whisper.Model)
	} else {
		logger.Info("Voice transcription is disabled")
	}

	// 9. 初始化后台任务池
	background, err := pool.NewPool("conversation-log", pool.BackgroundPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize background pool: %w", err)
	}

	// 10. 初始化 Biz 层
	service := biz.NewFAQService(knowledge, embedProvider, chatProvider,
		sessions, recorder, meta, transcriber, background,
		&biz.ServiceConfig{
			IngestorConfig: &biz.IngestorConfig{
				ChunkSize:    opts.FAQ.ChunkSize,
				ChunkOverlap: opts.FAQ.ChunkOverlap,
			},
			RetrieverConfig: &biz.RetrieverConfig{
				TopK: opts.FAQ.TopK,
			},
		})
	logger.Info("FAQ service initialized")

	// 11. 初始化 Handler 层与路由
	gin.SetMode(opts.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	faqHandler := handler.NewFAQHandler(service, docreader.NewRegistry(), opts.Server.MaxUploadBytes)
	webhookHandler := handler.NewWebhookHandler(service)
	router.Register(engine, faqHandler, webhookHandler, opts.Server.APIKey)

	// 12. 启动服务器
	srv := NewServer(opts.Server.Addr, engine, opts.Server.ShutdownTimeout)
	srv.OnShutdown(func(ctx context.Context) {
		if err := background.ReleaseTimeout(opts.Server.ShutdownTimeout); err != nil {
			logger.Warnw("failed to drain background pool", "error", err.Error())
		}
		if err := sessions.Close(); err != nil {
			logger.Warnw("failed to close session store", "error", err.Error())
		}
		if recorder != nil {
			if err := recorder.Close(ctx); err != nil {
				logger.Warnw("failed to close conversation log", "error", err.Error())
			}
		}
		if err := meta.Close(); err != nil {
			logger.Warnw("failed to close metadata store", "error", err.Error())
		}
		if err := knowledge.Close(ctx); err != nil {
			logger.Warnw("failed to close knowledge store", "error", err.Error())
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	})

	logger.Info("FAQ service is ready")
	return srv.Run()
}
