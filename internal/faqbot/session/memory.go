package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/faqbot/internal/model"
)

// memoryEntry 是内存中的一个会话。
type memoryEntry struct {
	userKey  string
	history  []model.Turn
	deadline time.Time
	element  *list.Element
}

// MemoryStore 进程内会话存储，适合单实例部署。
// 空闲超过 TTL 的会话在下次访问或淘汰扫描时清除，
// 会话总数超过 MaxSessions 时按最近使用时间淘汰最旧的会话。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	lru     *list.List // 队首最新，队尾最旧
	opts    *Options

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存会话存储。
func NewMemoryStore(opts *Options) *MemoryStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		lru:     list.New(),
		opts:    opts,
		now:     time.Now,
	}
}

// Get 读取用户的对话历史，返回副本避免调用方修改内部状态。
func (s *MemoryStore) Get(_ context.Context, userKey string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.touch(userKey)
	if ent == nil {
		return nil, nil
	}

	history := make([]model.Turn, len(ent.history))
	copy(history, ent.history)
	return history, nil
}

// Put 整体写入用户的对话历史。
func (s *MemoryStore) Put(_ context.Context, userKey string, history []model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store(userKey, history)
	return nil
}

// Update 对用户历史执行原子读改写。全程持锁，fn 不应阻塞。
func (s *MemoryStore) Update(_ context.Context, userKey string, fn func(history []model.Turn) []model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []model.Turn
	if ent := s.touch(userKey); ent != nil {
		current = make([]model.Turn, len(ent.history))
		copy(current, ent.history)
	}

	s.store(userKey, fn(current))
	return nil
}

// Delete 删除用户的对话历史。
func (s *MemoryStore) Delete(_ context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[userKey]; ok {
		s.remove(ent)
	}
	return nil
}

// Close 释放存储资源。
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	s.lru.Init()
	return nil
}

// Len 返回当前会话数，含未被访问到的过期会话。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// touch 查找会话并刷新其使用时间。过期会话被清除并返回 nil。
// 调用方必须持锁。
func (s *MemoryStore) touch(userKey string) *memoryEntry {
	ent, ok := s.entries[userKey]
	if !ok {
		return nil
	}
	if s.opts.TTL > 0 && s.now().After(ent.deadline) {
		s.remove(ent)
		return nil
	}
	s.lru.MoveToFront(ent.element)
	return ent
}

// store 写入会话并执行容量淘汰。调用方必须持锁。
func (s *MemoryStore) store(userKey string, history []model.Turn) {
	history = s.opts.clampTurns(history)

	ent, ok := s.entries[userKey]
	if !ok {
		ent = &memoryEntry{userKey: userKey}
		ent.element = s.lru.PushFront(ent)
		s.entries[userKey] = ent
	} else {
		s.lru.MoveToFront(ent.element)
	}

	ent.history = history
	if s.opts.TTL > 0 {
		ent.deadline = s.now().Add(s.opts.TTL)
	}

	s.evict()
}

// evict 淘汰过期与超量的会话。调用方必须持锁。
func (s *MemoryStore) evict() {
	if s.opts.TTL > 0 {
		now := s.now()
		for e := s.lru.Back(); e != nil; {
			ent := e.Value.(*memoryEntry)
			if !now.After(ent.deadline) {
				break
			}
			prev := e.Prev()
			s.remove(ent)
			e = prev
		}
	}

	if s.opts.MaxSessions <= 0 {
		return
	}
	for len(s.entries) > s.opts.MaxSessions {
		oldest := s.lru.Back()
		if oldest == nil {
			return
		}
		ent := oldest.Value.(*memoryEntry)
		s.remove(ent)
		logger.Debugw("session evicted", "user_key", ent.userKey, "sessions", len(s.entries))
	}
}

// remove 删除会话。调用方必须持锁。
func (s *MemoryStore) remove(ent *memoryEntry) {
	s.lru.Remove(ent.element)
	delete(s.entries, ent.userKey)
}
