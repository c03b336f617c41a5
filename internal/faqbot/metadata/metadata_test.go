package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordIngestCreatesAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordIngest(ctx, "biz-1", "faq.pdf", 12))

	business, err := s.Get(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "faq.pdf", business.SourceFile)
	assert.Equal(t, 12, business.ChunkCount)
	assert.False(t, business.IndexedAt.IsZero())

	// 再次入库更新同一条记录
	require.NoError(t, s.RecordIngest(ctx, "biz-1", "faq_v2.pdf", 20))

	business, err = s.Get(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "faq_v2.pdf", business.SourceFile)
	assert.Equal(t, 20, business.ChunkCount)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetUnknownBusiness(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByBusinessID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordIngest(ctx, "biz-b", "b.txt", 1))
	require.NoError(t, s.RecordIngest(ctx, "biz-a", "a.txt", 2))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "biz-a", all[0].BusinessID)
	assert.Equal(t, "biz-b", all[1].BusinessID)
}
