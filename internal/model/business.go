package model

import "time"

// Business 商家元数据，记录知识库来源与索引状态。
type Business struct {
	ID         uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	BusinessID string `json:"business_id" gorm:"uniqueIndex;size:128;not null"`
	Name       string `json:"name" gorm:"size:256"`

	// SourceFile 最近一次入库的源文件名。
	SourceFile string `json:"source_file" gorm:"size:512"`
	// ChunkCount 知识库中的文档块数量。
	ChunkCount int `json:"chunk_count"`
	// IndexedAt 最近一次建索引的时间。
	IndexedAt time.Time `json:"indexed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名。
func (Business) TableName() string {
	return "businesses"
}
