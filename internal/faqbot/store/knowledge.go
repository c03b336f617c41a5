package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"
)

// snapshot 是单个商家知识库的持久化形态。
type snapshot struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
	Chunks    []Chunk     `json:"chunks"`
}

// entry 是内存中的知识库条目。index 与 chunks 始终成对替换。
type entry struct {
	index  *FlatIndex
	chunks []Chunk
}

// knowledgeStore 是 KnowledgeStore 的默认实现。
// 内存中维护按商家 ID 划分的索引注册表，替换在写锁内整体完成，
// 检索只持读锁，不会看到向量与文档块不一致的中间状态。
// 配置了 BlobStore 时快照同步落盘，重启后按需加载。
type knowledgeStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	blobs BlobStore
}

var _ KnowledgeStore = (*knowledgeStore)(nil)

// NewKnowledgeStore 创建知识库存储。blobs 为 nil 时仅保留在内存中。
func NewKnowledgeStore(blobs BlobStore) KnowledgeStore {
	return &knowledgeStore{
		entries: make(map[string]*entry),
		blobs:   blobs,
	}
}

// Replace 整体替换商家的知识库。
// 先持久化快照再替换内存条目，落盘失败时内存保持旧值。
func (s *knowledgeStore) Replace(ctx context.Context, businessID string, vectors [][]float32, chunks []Chunk) error {
	if businessID == "" {
		return errors.New("store: empty business id")
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("store: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	index, err := NewFlatIndex(vectors)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	if s.blobs != nil {
		data, err := sonic.Marshal(&snapshot{
			Dimension: index.Dimension(),
			Vectors:   vectors,
			Chunks:    chunks,
		})
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := s.blobs.Save(ctx, businessID, data); err != nil {
			return fmt.Errorf("persist snapshot: %w", err)
		}
	}

	s.mu.Lock()
	s.entries[businessID] = &entry{index: index, chunks: chunks}
	s.mu.Unlock()

	logger.Infow("knowledge base replaced",
		"business_id", businessID, "chunks", len(chunks), "dimension", index.Dimension())
	return nil
}

// Search 向量相似度检索。商家不存在时返回空结果。
func (s *knowledgeStore) Search(ctx context.Context, businessID string, query []float32, topK int) ([]SearchResult, error) {
	ent, err := s.lookup(ctx, businessID)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, nil
		}
		return nil, err
	}

	hits := ent.index.Search(query, topK)
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			Position: h.position,
			Text:     ent.chunks[h.position].Text,
			Score:    h.score,
		})
	}
	return results, nil
}

// Stats 获取商家知识库的统计信息。
func (s *knowledgeStore) Stats(ctx context.Context, businessID string) (*Stats, error) {
	ent, err := s.lookup(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return &Stats{ChunkCount: len(ent.chunks), Dimension: ent.index.Dimension()}, nil
}

// Businesses 列出已建立索引的商家 ID，内存与持久化存储取并集。
func (s *knowledgeStore) Businesses(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	s.mu.RLock()
	for id := range s.entries {
		seen[id] = struct{}{}
	}
	s.mu.RUnlock()

	if s.blobs != nil {
		keys, err := s.blobs.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 释放存储资源。文件实现无需清理。
func (s *knowledgeStore) Close(_ context.Context) error {
	return nil
}

// lookup 查找商家条目，内存未命中时尝试从持久化存储加载。
func (s *knowledgeStore) lookup(ctx context.Context, businessID string) (*entry, error) {
	s.mu.RLock()
	ent, ok := s.entries[businessID]
	s.mu.RUnlock()
	if ok {
		return ent, nil
	}

	if s.blobs == nil {
		return nil, ErrIndexNotFound
	}

	data, err := s.blobs.Load(ctx, businessID)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, ErrIndexNotFound
		}
		return nil, err
	}

	var snap snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(snap.Vectors) != len(snap.Chunks) {
		return nil, fmt.Errorf("store: corrupt snapshot for %s: %d vectors, %d chunks",
			businessID, len(snap.Vectors), len(snap.Chunks))
	}

	index, err := NewFlatIndex(snap.Vectors)
	if err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 并发加载时保留先写入者
	if existing, ok := s.entries[businessID]; ok {
		return existing, nil
	}
	ent = &entry{index: index, chunks: snap.Chunks}
	s.entries[businessID] = ent

	logger.Infow("knowledge base loaded from disk",
		"business_id", businessID, "chunks", len(snap.Chunks))
	return ent, nil
}
