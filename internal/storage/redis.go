package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound Redis键不存在
var ErrNotFound = redis.Nil

// Redis 去重集合与计数缓存的适配器
type Redis struct {
	Client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端并校验连通性
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, cfg: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连通性
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// IsDuplicateText 检查简历原文MD5是否已在集合中，用于重复上传短路
func (r *Redis) IsDuplicateText(ctx context.Context, md5Hex string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	return r.Client.SIsMember(ctx, constants.RawTextMD5SetKey, md5Hex).Result()
}

// AddRawTextMD5 把简历原文MD5记入集合并确保集合带过期时间
func (r *Redis) AddRawTextMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	pipe := r.Client.Pipeline()
	pipe.SAdd(ctx, constants.RawTextMD5SetKey, md5Hex)
	// ExpireNX: 仅在集合尚无过期时间时设置，避免每次写入都重置
	pipe.ExpireNX(ctx, constants.RawTextMD5SetKey, constants.RawTextMD5ExpireDays*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedResumeCount 读取简历总数缓存，未命中时second返回false
func (r *Redis) GetCachedResumeCount(ctx context.Context) (int64, bool) {
	if r.Client == nil {
		return 0, false
	}
	val, err := r.Client.Get(ctx, constants.ResumeCountCacheKey).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetCachedResumeCount 写入简历总数缓存
func (r *Redis) SetCachedResumeCount(ctx context.Context, count int64) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Set(ctx, constants.ResumeCountCacheKey, count, constants.ResumeCountCacheTTL).Err()
}

// InvalidateResumeCount 新简历入库后使计数缓存失效
func (r *Redis) InvalidateResumeCount(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, constants.ResumeCountCacheKey).Err()
}
