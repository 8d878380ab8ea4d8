package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"chatlog/internal/config"
	"chatlog/internal/model/conversation"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("cache miss")

// RedisCache Redis 缓存封装
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 缓存客户端
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = ConversationCacheTTL
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Set 设置缓存
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get 获取缓存，未命中返回 ErrMiss
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// GetConversation 读取对话快照
func (c *RedisCache) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	if err := c.Get(ctx, ConversationCacheKey(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SetConversation 以查询所用的 id 缓存对话快照
func (c *RedisCache) SetConversation(ctx context.Context, id string, conv *conversation.Conversation) error {
	return c.Set(ctx, ConversationCacheKey(id), conv, c.ttl)
}

// InvalidateConversation 删除对话所有可能的缓存 key
func (c *RedisCache) InvalidateConversation(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, ConversationCacheKey(id))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Delete(ctx, keys...)
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// 常用 key 模式
const (
	ConversationCacheKeyPrefix = "conv:"
	ConversationCacheTTL       = 5 * time.Minute
)

// ConversationCacheKey 生成对话缓存 key
func ConversationCacheKey(id string) string {
	return ConversationCacheKeyPrefix + id
}
