package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const cacheKeyPrefix = "rag:inventory:model:"

// KeySource 按模型 uuid 提供 APIKey
type KeySource interface {
	APIKey(uuid string) string
}

// CachedResolver 使用 Redis 缓存解析结果
// 缓存中不保存 APIKey，命中时从 KeySource 重新补上；
// 解析结果携带清单以外的 APIKey（自定义模型）时不缓存。
// Redis 不可用时直接回退到下层 Resolver
type CachedResolver struct {
	next   Resolver
	keys   KeySource
	client redis.Cmdable
	ttl    time.Duration
}

func NewCachedResolver(next Resolver, keys KeySource, client redis.Cmdable, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedResolver{next: next, keys: keys, client: client, ttl: ttl}
}

func (c *CachedResolver) Resolve(ctx context.Context, ref string) (*ModelDescriptor, error) {
	key := cacheKey(ref)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var desc ModelDescriptor
		if jsonErr := json.Unmarshal(raw, &desc); jsonErr == nil {
			klog.V(8).Infof("[Inventory] 缓存命中: %s", key)
			desc.APIKey = c.keys.APIKey(desc.UUID)
			return &desc, nil
		}
		klog.Warningf("[Inventory] 缓存内容损坏，忽略: %s", key)
	case errors.Is(err, redis.Nil):
	default:
		klog.Warningf("[Inventory] 读取缓存失败: %v", err)
	}

	desc, err := c.next.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	if desc.APIKey != c.keys.APIKey(desc.UUID) {
		klog.V(6).Infof("[Inventory] 模型携带自定义凭证，跳过缓存: %s", key)
		return desc, nil
	}
	stored := *desc
	stored.APIKey = ""
	if data, err := json.Marshal(stored); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			klog.Warningf("[Inventory] 写入缓存失败: %v", err)
		}
	}
	return desc, nil
}

func cacheKey(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
