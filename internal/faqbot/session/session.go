// Package session 提供按用户隔离的对话历史存储。
//
// 历史以追加为主，同一用户的读改写通过 Update 串行化，
// 过期与容量淘汰策略由配置注入。
package session

import (
	"context"
	"time"

	"github.com/kart-io/faqbot/internal/model"
)

// Store 定义对话历史存储接口。
type Store interface {
	// Get 读取用户的对话历史。用户不存在或已过期时返回空历史。
	Get(ctx context.Context, userKey string) ([]model.Turn, error)

	// Put 整体写入用户的对话历史。
	Put(ctx context.Context, userKey string, history []model.Turn) error

	// Update 对用户历史执行原子读改写。
	// fn 收到当前历史（可能为空）并返回新历史，同一用户的并发 Update 串行执行。
	Update(ctx context.Context, userKey string, fn func(history []model.Turn) []model.Turn) error

	// Delete 删除用户的对话历史。
	Delete(ctx context.Context, userKey string) error

	// Close 释放存储资源。
	Close() error
}

// Options 会话存储配置。
type Options struct {
	// TTL 会话空闲过期时间，0 表示不过期。
	TTL time.Duration

	// MaxSessions 内存实现的最大会话数，超出时按 LRU 淘汰，0 表示不限制。
	MaxSessions int

	// MaxTurns 单个会话保留的最大轮次数，超出时丢弃最旧的轮次，0 表示不限制。
	MaxTurns int
}

// DefaultOptions 返回默认配置。
func DefaultOptions() *Options {
	return &Options{
		TTL:         12 * time.Hour,
		MaxSessions: 10000,
		MaxTurns:    40,
	}
}

// clampTurns 按 MaxTurns 截断历史，保留最近的轮次。
func (o *Options) clampTurns(history []model.Turn) []model.Turn {
	if o.MaxTurns <= 0 || len(history) <= o.MaxTurns {
		return history
	}
	return history[len(history)-o.MaxTurns:]
}
