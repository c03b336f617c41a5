package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/faqbot/internal/model"
)

// setupTestRedis 连接本地 Redis，不可用时跳过测试。
func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), redisKeyPrefix+"test-*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		client.Close()
	})
	return client
}

func TestRedisStorePutGet(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, &Options{TTL: time.Minute})
	ctx := context.Background()

	history := []model.Turn{
		{Role: model.RoleUser, Content: "配送范围是哪里"},
		{Role: model.RoleAssistant, Content: "全市范围"},
	}
	require.NoError(t, s.Put(ctx, "test-user-1", history))

	got, err := s.Get(ctx, "test-user-1")
	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestRedisStoreGetUnknownUser(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, nil)

	history, err := s.Get(context.Background(), "test-nobody")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedisStoreConcurrentUpdates(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, &Options{TTL: time.Minute})
	ctx := context.Background()

	const workers = 4
	const perWorker = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := s.Update(ctx, "test-shared", func(history []model.Turn) []model.Turn {
					return append(history, model.Turn{
						Role:    model.RoleUser,
						Content: fmt.Sprintf("w%d-%d", n, j),
					})
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	history, err := s.Get(ctx, "test-shared")
	require.NoError(t, err)
	assert.Len(t, history, workers*perWorker)
}

func TestRedisStoreDelete(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, nil)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "test-user-del", []model.Turn{{Content: "hi"}}))
	require.NoError(t, s.Delete(ctx, "test-user-del"))

	history, err := s.Get(ctx, "test-user-del")
	require.NoError(t, err)
	assert.Empty(t, history)
}
