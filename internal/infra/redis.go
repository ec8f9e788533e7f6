package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/francis150/tmpltr/internal/config"
	"github.com/francis150/tmpltr/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis 初始化 Redis 客户端（可选组件，仅渲染缓存失效使用）
// 未启用时返回 nil，调用方需自行降级
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("Redis 未启用，渲染缓存失效将降级为空操作")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接测试失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return client, nil
}
