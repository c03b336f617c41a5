// Package convlog 提供对话日志的持久化与统计。
//
// 每条 webhook 问答写入一条日志记录，analytics 接口在其上聚合。
// 日志写入走后台任务，不阻塞对用户的回复。
package convlog

import (
	"context"

	"github.com/kart-io/faqbot/internal/model"
)

// Recorder 定义对话日志接口。
type Recorder interface {
	// Log 写入一条对话记录。记录 ID 与时间戳由实现填充。
	Log(ctx context.Context, record *model.ConversationRecord) error

	// Analytics 聚合单个商家的对话统计。
	Analytics(ctx context.Context, businessID string, recentLimit int) (*model.Analytics, error)

	// Close 释放资源。
	Close(ctx context.Context) error
}

// NopRecorder 空实现，对话日志未配置时使用。
type NopRecorder struct{}

var _ Recorder = (*NopRecorder)(nil)

func (NopRecorder) Log(context.Context, *model.ConversationRecord) error { return nil }

func (NopRecorder) Analytics(_ context.Context, businessID string, _ int) (*model.Analytics, error) {
	return &model.Analytics{BusinessID: businessID}, nil
}

func (NopRecorder) Close(context.Context) error { return nil }
