package session

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/faqbot/internal/model"
)

const redisKeyPrefix = "faqbot:session:"

// maxTxRetries Update 乐观锁冲突时的最大重试次数。
const maxTxRetries = 16

// RedisStore 基于 Redis 的会话存储，适合多实例部署。
// 过期由 Redis TTL 负责，Update 通过 WATCH 事务实现按键原子读改写。
type RedisStore struct {
	client *goredis.Client
	opts   *Options
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 创建 Redis 会话存储。
func NewRedisStore(client *goredis.Client, opts *Options) *RedisStore {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &RedisStore{client: client, opts: opts}
}

func (s *RedisStore) key(userKey string) string {
	return redisKeyPrefix + userKey
}

// Get 读取用户的对话历史。
func (s *RedisStore) Get(ctx context.Context, userKey string) ([]model.Turn, error) {
	data, err := s.client.Get(ctx, s.key(userKey)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("session: redis get: %w", err)
	}

	var history []model.Turn
	if err := sonic.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("session: decode history: %w", err)
	}
	return history, nil
}

// Put 整体写入用户的对话历史。
func (s *RedisStore) Put(ctx context.Context, userKey string, history []model.Turn) error {
	data, err := sonic.Marshal(s.opts.clampTurns(history))
	if err != nil {
		return fmt.Errorf("session: encode history: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userKey), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

// Update 对用户历史执行原子读改写。
// 使用 WATCH 乐观锁，并发冲突时重试。
func (s *RedisStore) Update(ctx context.Context, userKey string, fn func(history []model.Turn) []model.Turn) error {
	key := s.key(userKey)

	txn := func(tx *goredis.Tx) error {
		var history []model.Turn
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != goredis.Nil {
			return fmt.Errorf("session: redis get: %w", err)
		}
		if err == nil {
			if err := sonic.Unmarshal(data, &history); err != nil {
				return fmt.Errorf("session: decode history: %w", err)
			}
		}

		updated, err := sonic.Marshal(s.opts.clampTurns(fn(history)))
		if err != nil {
			return fmt.Errorf("session: encode history: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.opts.TTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if err == goredis.TxFailedErr {
			continue
		}
		return err
	}
	return fmt.Errorf("session: update conflict on %s after %d retries", userKey, maxTxRetries)
}

// Delete 删除用户的对话历史。
func (s *RedisStore) Delete(ctx context.Context, userKey string) error {
	if err := s.client.Del(ctx, s.key(userKey)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
