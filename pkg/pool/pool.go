// Package pool 提供基于 ants 的 goroutine 池封装。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// 池相关错误定义
var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool: closed")
	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("pool: overloaded")
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
}

// DefaultPoolConfig 返回默认池配置
func DefaultPoolConfig() *Config {
	return &Config{
		Capacity:       500,
		ExpiryDuration: 10 * time.Second,
	}
}

// BackgroundPoolConfig 返回后台任务池配置（对话日志、元数据更新等）
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         50,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 100,
	}
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 // 已提交任务数
	CompletedTasks int64 // 已完成任务数
	RejectedTasks  int64 // 拒绝任务数
	PanicRecovered int64 // 恢复的 panic 数
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	pool   *ants.Pool
	config *Config
	closed atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	releaseMu sync.Mutex
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	p := &Pool{
		name:   name,
		config: config,
	}

	antsPool, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.panics.Add(1)
			logger.Errorw("worker panic recovered", "pool", name, "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pool: create ants pool: %w", err)
	}
	p.pool = antsPool

	logger.Infow("worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.rejected.Add(1)
			return ErrPoolOverload
		}
		return err
	}

	p.submitted.Add(1)
	return nil
}

// SubmitWithContext 提交带上下文的任务。
// 任务开始执行前上下文已取消时任务被跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.releaseMu.Lock()
	defer p.releaseMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("worker pool released", "name", p.name)
}

// ReleaseTimeout 关闭池，等待在途任务完成直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.releaseMu.Lock()
	defer p.releaseMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.submitted.Load(),
		CompletedTasks: p.completed.Load(),
		RejectedTasks:  p.rejected.Load(),
		PanicRecovered: p.panics.Load(),
	}
}
