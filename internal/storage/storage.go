package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/config"

	"github.com/rs/zerolog/log"
)

// Storage 存储管理器，聚合所有存储相关依赖
// 各组件按配置逐一初始化，允许部分失败降级运行
type Storage struct {
	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis

	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器
// MySQL是画像落库的硬依赖，初始化失败直接返回错误；
// Redis/MinIO/RabbitMQ失败只记录告警，对应能力降级
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("初始化MySQL失败: %w", err)
		}
	} else {
		return nil, fmt.Errorf("MySQL未配置，画像无处落库")
	}

	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("初始化Redis失败，去重与计数缓存降级")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
			storage.Redis = nil
		}
	} else {
		log.Info().Msg("Redis未配置, 跳过初始化")
	}

	if cfg.MinIO.Endpoint != "" {
		storage.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			log.Warn().Err(err).Msg("初始化MinIO失败，原始文件归档降级")
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
			storage.MinIO = nil
		}
	} else {
		log.Info().Msg("MinIO未配置, 跳过初始化")
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("初始化RabbitMQ失败，事件广播与ATS同步降级")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
			storage.RabbitMQ = nil
		}
	} else {
		log.Info().Msg("RabbitMQ未配置, 跳过初始化")
	}

	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败，以降级模式继续")
	}
	return storage, nil
}

// Close 关闭所有已初始化的存储组件
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
