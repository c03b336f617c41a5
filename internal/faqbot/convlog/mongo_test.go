package convlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/faqbot/internal/model"
)

// setupTestMongo 连接本地 MongoDB，不可用时跳过测试。
func setupTestMongo(t *testing.T) *MongoRecorder {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := NewMongoRecorder(ctx, "mongodb://localhost:27017", "faqbot_test", "conversations")
	if err != nil {
		t.Skipf("mongodb not available: %v", err)
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_ = r.client.Database("faqbot_test").Drop(ctx)
		_ = r.Close(ctx)
	})
	return r
}

func TestMongoRecorderLogFillsIDAndTimestamp(t *testing.T) {
	r := setupTestMongo(t)
	ctx := context.Background()

	record := &model.ConversationRecord{
		UserID:     "whatsapp:+10000000001",
		BusinessID: "biz-1",
		Query:      "do you deliver",
		QueryType:  model.QueryTypeText,
		Answer:     "yes, city wide",
	}
	require.NoError(t, r.Log(ctx, record))

	assert.NotEmpty(t, record.ID)
	assert.False(t, record.Timestamp.IsZero())
}

func TestMongoRecorderAnalytics(t *testing.T) {
	r := setupTestMongo(t)
	ctx := context.Background()

	records := []*model.ConversationRecord{
		{UserID: "u1", BusinessID: "biz-a", Query: "q1", QueryType: model.QueryTypeText, Answer: "a1"},
		{UserID: "u1", BusinessID: "biz-a", Query: "q2", QueryType: model.QueryTypeVoice, Answer: "a2"},
		{UserID: "u2", BusinessID: "biz-a", Query: "q3", QueryType: model.QueryTypeText, Answer: "a3"},
		{UserID: "u3", BusinessID: "biz-b", Query: "q4", QueryType: model.QueryTypeText, Answer: "a4"},
	}
	for _, rec := range records {
		require.NoError(t, r.Log(ctx, rec))
	}

	analytics, err := r.Analytics(ctx, "biz-a", 2)
	require.NoError(t, err)

	assert.Equal(t, "biz-a", analytics.BusinessID)
	assert.Equal(t, int64(3), analytics.TotalQueries)
	assert.Equal(t, int64(1), analytics.VoiceQueries)
	assert.Equal(t, int64(2), analytics.UniqueUsers)
	assert.Len(t, analytics.RecentActivity, 2)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	ctx := context.Background()

	require.NoError(t, r.Log(ctx, &model.ConversationRecord{}))

	analytics, err := r.Analytics(ctx, "biz", 5)
	require.NoError(t, err)
	assert.Equal(t, "biz", analytics.BusinessID)
	assert.Zero(t, analytics.TotalQueries)
}
