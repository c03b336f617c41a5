package store

import (
	"fmt"
	"sort"

	"github.com/kart-io/faqbot/internal/pkg/textutil"
)

// FlatIndex 是平坦内积索引，对全部向量做穷举检索。
// 向量入库前应已做 L2 归一化，此时内积即余弦相似度。
// FlatIndex 构建后只读，并发检索安全。
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// NewFlatIndex 基于给定向量构建索引。所有向量维度必须一致。
func NewFlatIndex(vectors [][]float32) (*FlatIndex, error) {
	idx := &FlatIndex{}
	if len(vectors) == 0 {
		return idx, nil
	}

	idx.dimension = len(vectors[0])
	if idx.dimension == 0 {
		return nil, fmt.Errorf("%w: empty vector at position 0", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != idx.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(v), idx.dimension)
		}
	}

	idx.vectors = vectors
	return idx, nil
}

// Len 返回索引中的向量数量。
func (idx *FlatIndex) Len() int {
	return len(idx.vectors)
}

// Dimension 返回向量维度。空索引返回 0。
func (idx *FlatIndex) Dimension() int {
	return idx.dimension
}

// scored 记录一个候选位置及其分数。
type scored struct {
	position int
	score    float32
}

// Search 返回与查询向量内积最大的 topK 个位置。
// 结果按分数降序排列，同分按位置升序，保证排序稳定可复现。
func (idx *FlatIndex) Search(query []float32, topK int) []scored {
	if topK <= 0 || len(idx.vectors) == 0 {
		return nil
	}
	if len(query) != idx.dimension {
		return nil
	}

	candidates := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		candidates[i] = scored{position: i, score: textutil.DotProduct(query, v)}
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].position < candidates[b].position
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK]
}
