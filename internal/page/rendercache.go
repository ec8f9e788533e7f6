package page

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RenderCache 派生渲染缓存的失效钩子
// 克隆页面后按构建器家族清理缓存标记；属于收尾清理，失败不影响合并结果
type RenderCache interface {
	Clear(ctx context.Context, pageID, family string) error
}

// NopRenderCache 空实现（未配置 Redis 时使用）
type NopRenderCache struct{}

// Clear 空操作
func (NopRenderCache) Clear(ctx context.Context, pageID, family string) error {
	return nil
}

// RedisRenderCache 基于 Redis 的渲染缓存失效实现
type RedisRenderCache struct {
	client *redis.Client
}

// NewRedisRenderCache 创建 RedisRenderCache 实例
func NewRedisRenderCache(client *redis.Client) *RedisRenderCache {
	return &RedisRenderCache{client: client}
}

// Clear 删除指定页面在该构建器家族下的渲染缓存键
func (c *RedisRenderCache) Clear(ctx context.Context, pageID, family string) error {
	keys := []string{
		fmt.Sprintf("render:%s:%s", family, pageID),
		fmt.Sprintf("render:%s:%s:css", family, pageID),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("清理渲染缓存失败: %w", err)
	}
	return nil
}
