package store

import (
	"context"
	"errors"
)

// ErrIndexNotFound 表示商家尚未建立知识库索引。
var ErrIndexNotFound = errors.New("store: index not found")

// ErrDimensionMismatch 表示向量维度与索引不一致。
var ErrDimensionMismatch = errors.New("store: vector dimension mismatch")

// Chunk 表示知识库中的一个文档块。
type Chunk struct {
	// Position 文档块在原文中的序号，从 0 开始。
	Position int `json:"position"`
	// Text 文档块内容。
	Text string `json:"text"`
}

// SearchResult 表示一条检索结果。
type SearchResult struct {
	// Position 文档块序号。
	Position int
	// Text 文档块内容。
	Text string
	// Score 内积相似度分数。向量已归一化时等价于余弦相似度。
	Score float32
}

// Stats 表示单个商家知识库的统计信息。
type Stats struct {
	// ChunkCount 文档块数量。
	ChunkCount int
	// Dimension 向量维度。
	Dimension int
}

// KnowledgeStore 定义按商家隔离的知识库存储接口。
//
// 同一商家的向量索引与文档块序列始终等长且一一对应，
// Replace 以原子方式整体替换，检索不会观察到中间状态。
type KnowledgeStore interface {
	// Replace 整体替换商家的知识库。向量与文档块必须等长。
	Replace(ctx context.Context, businessID string, vectors [][]float32, chunks []Chunk) error

	// Search 向量相似度检索。按分数降序返回，同分按序号升序。
	// 商家不存在时返回空结果而非错误。
	Search(ctx context.Context, businessID string, query []float32, topK int) ([]SearchResult, error)

	// Stats 获取商家知识库的统计信息。商家不存在时返回 ErrIndexNotFound。
	Stats(ctx context.Context, businessID string) (*Stats, error)

	// Businesses 列出已建立索引的商家 ID。
	Businesses(ctx context.Context) ([]string, error)

	// Close 释放存储资源。
	Close(ctx context.Context) error
}
