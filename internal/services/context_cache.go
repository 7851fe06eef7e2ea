package services

import (
	"context"
	"time"

	"github.com/phpmigrate/backend-go/internal/retrieval"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisContextCache 基于Redis的检索上下文缓存
type RedisContextCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisContextCache 创建Redis上下文缓存
func NewRedisContextCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisContextCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisContextCache{client: client, ttl: ttl, logger: logger}
}

// Get 读取缓存，miss或Redis异常返回(_, false)
func (c *RedisContextCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn("context cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

// Set 写入缓存，Redis异常只记录
func (c *RedisContextCache) Set(ctx context.Context, key string, value string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("context cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 清除某用户的全部缓存条目（文档上传或删除后调用）
func (c *RedisContextCache) Invalidate(ctx context.Context, ownerID uint) {
	if c == nil || c.client == nil {
		return
	}
	pattern := retrieval.ContextCacheKeyPrefix(ownerID) + "*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("context cache delete failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("context cache scan failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
