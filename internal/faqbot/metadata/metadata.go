// Package metadata 提供商家元数据的持久化存储。
//
// 使用内嵌 SQLite，记录每个商家的知识库来源与索引状态，
// 供管理端查询，不参与消息处理链路。
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/faqbot/internal/model"
)

// ErrNotFound 表示商家元数据不存在。
var ErrNotFound = errors.New("metadata: business not found")

// Store 商家元数据存储。
type Store struct {
	db *gorm.DB
}

// NewStore 打开 SQLite 数据库并迁移表结构。
// path 传 ":memory:" 时使用内存数据库。
func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&model.Business{}); err != nil {
		return nil, fmt.Errorf("metadata: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordIngest 记录一次成功的知识库入库，商家不存在时创建。
func (s *Store) RecordIngest(ctx context.Context, businessID, sourceFile string, chunkCount int) error {
	now := time.Now().UTC()

	var business model.Business
	err := s.db.WithContext(ctx).Where("business_id = ?", businessID).First(&business).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		business = model.Business{
			BusinessID: businessID,
			SourceFile: sourceFile,
			ChunkCount: chunkCount,
			IndexedAt:  now,
		}
		if err := s.db.WithContext(ctx).Create(&business).Error; err != nil {
			return fmt.Errorf("metadata: create business: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("metadata: query business: %w", err)
	}

	updates := map[string]any{
		"source_file": sourceFile,
		"chunk_count": chunkCount,
		"indexed_at":  now,
	}
	if err := s.db.WithContext(ctx).Model(&business).Updates(updates).Error; err != nil {
		return fmt.Errorf("metadata: update business: %w", err)
	}
	return nil
}

// Get 查询单个商家的元数据。
func (s *Store) Get(ctx context.Context, businessID string) (*model.Business, error) {
	var business model.Business
	err := s.db.WithContext(ctx).Where("business_id = ?", businessID).First(&business).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: query business: %w", err)
	}
	return &business, nil
}

// List 列出全部商家元数据，按商家 ID 排序。
func (s *Store) List(ctx context.Context) ([]model.Business, error) {
	var businesses []model.Business
	if err := s.db.WithContext(ctx).Order("business_id").Find(&businesses).Error; err != nil {
		return nil, fmt.Errorf("metadata: list businesses: %w", err)
	}
	return businesses, nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
