package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndexSearch(t *testing.T) {
	// 单位向量，位置 1 与查询同向
	idx, err := NewFlatIndex([][]float32{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 1},
	})
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	hits := idx.Search([]float32{1, 0, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].position)
	assert.InDelta(t, 1.0, hits[0].score, 1e-6)
	assert.Greater(t, hits[0].score, hits[1].score)
}

func TestFlatIndexSearchTieOrder(t *testing.T) {
	// 位置 0 和 2 与查询的内积相同，同分时按位置升序
	idx, err := NewFlatIndex([][]float32{
		{0, 1},
		{1, 0},
		{0, 1},
	})
	require.NoError(t, err)

	hits := idx.Search([]float32{0, 1}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].position)
	assert.Equal(t, 2, hits[1].position)
	assert.Equal(t, 1, hits[2].position)
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	_, err := NewFlatIndex([][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	idx, err := NewFlatIndex([][]float32{{1, 0}})
	require.NoError(t, err)
	// 查询维度不匹配时返回空结果
	assert.Empty(t, idx.Search([]float32{1, 0, 0}, 1))
}

func TestFlatIndexTopKBounds(t *testing.T) {
	idx, err := NewFlatIndex([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	assert.Empty(t, idx.Search([]float32{1, 0}, 0))
	assert.Len(t, idx.Search([]float32{1, 0}, 10), 2)

	empty, err := NewFlatIndex(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Search([]float32{1, 0}, 3))
}

func TestKnowledgeStoreReplaceValidation(t *testing.T) {
	s := NewKnowledgeStore(nil)
	ctx := context.Background()

	err := s.Replace(ctx, "", [][]float32{{1}}, []Chunk{{Text: "a"}})
	assert.Error(t, err)

	// 向量与文档块数量不一致
	err = s.Replace(ctx, "biz", [][]float32{{1}, {0}}, []Chunk{{Text: "a"}})
	assert.Error(t, err)
}

func TestKnowledgeStoreSearchUnknownBusiness(t *testing.T) {
	s := NewKnowledgeStore(nil)

	results, err := s.Search(context.Background(), "nobody", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKnowledgeStoreReplaceAndSearch(t *testing.T) {
	s := NewKnowledgeStore(nil)
	ctx := context.Background()

	vectors := [][]float32{{1, 0}, {0, 1}}
	chunks := []Chunk{
		{Position: 0, Text: "营业时间为 9 点到 18 点"},
		{Position: 1, Text: "支持上门配送"},
	}
	require.NoError(t, s.Replace(ctx, "biz-1", vectors, chunks))

	results, err := s.Search(ctx, "biz-1", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, "支持上门配送", results[0].Text)

	stats, err := s.Stats(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, 2, stats.Dimension)
}

func TestKnowledgeStoreBusinessIsolation(t *testing.T) {
	s := NewKnowledgeStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "biz-a", [][]float32{{1, 0}}, []Chunk{{Text: "a 的内容"}}))
	require.NoError(t, s.Replace(ctx, "biz-b", [][]float32{{1, 0}}, []Chunk{{Text: "b 的内容"}}))

	results, err := s.Search(ctx, "biz-a", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a 的内容", results[0].Text)
}

func TestKnowledgeStoreReindexReplacesWholly(t *testing.T) {
	s := NewKnowledgeStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "biz", [][]float32{{1, 0}, {0, 1}, {1, 0}},
		[]Chunk{{Text: "旧 1"}, {Text: "旧 2"}, {Text: "旧 3"}}))
	require.NoError(t, s.Replace(ctx, "biz", [][]float32{{1, 0}},
		[]Chunk{{Position: 0, Text: "新内容"}}))

	stats, err := s.Stats(ctx, "biz")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)

	results, err := s.Search(ctx, "biz", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "新内容", results[0].Text)
}

func TestKnowledgeStorePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	blobs, err := NewFileBlobStore(dir)
	require.NoError(t, err)

	s := NewKnowledgeStore(blobs)
	require.NoError(t, s.Replace(ctx, "biz-1", [][]float32{{0, 1}, {1, 0}},
		[]Chunk{{Position: 0, Text: "第一块"}, {Position: 1, Text: "第二块"}}))

	// 新实例模拟进程重启，检索时按需从磁盘加载
	blobs2, err := NewFileBlobStore(dir)
	require.NoError(t, err)
	s2 := NewKnowledgeStore(blobs2)

	results, err := s2.Search(ctx, "biz-1", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, "第二块", results[0].Text)

	ids, err := s2.Businesses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"biz-1"}, ids)
}

func TestKnowledgeStoreConcurrentReplaceAndSearch(t *testing.T) {
	s := NewKnowledgeStore(nil)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "biz", [][]float32{{1, 0}},
		[]Chunk{{Position: 0, Text: "chunk-0"}}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				size := n%3 + 1
				vectors := make([][]float32, size)
				chunks := make([]Chunk, size)
				for k := 0; k < size; k++ {
					vectors[k] = []float32{1, 0}
					chunks[k] = Chunk{Position: k, Text: fmt.Sprintf("chunk-%d", k)}
				}
				assert.NoError(t, s.Replace(ctx, "biz", vectors, chunks))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				results, err := s.Search(ctx, "biz", []float32{1, 0}, 10)
				assert.NoError(t, err)
				// 任意时刻结果都来自某个完整的替换，块文本与位置一致
				for _, r := range results {
					assert.Equal(t, fmt.Sprintf("chunk-%d", r.Position), r.Text)
				}
			}
		}()
	}
	wg.Wait()
}
