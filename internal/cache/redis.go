package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bazaar-next/internal/config"

	"github.com/redis/go-redis/v9"
)

// store 进程内唯一的 Redis 连接。未启用时所有读写都是空操作，调用方按缓存未命中处理。
type store struct {
	mu     sync.RWMutex
	client *redis.Client
	prefix string
}

var std = &store{prefix: defaultPrefix}

func (s *store) get() (*redis.Client, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.prefix
}

func (s *store) set(client *redis.Client, prefix string) {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	s.mu.Lock()
	s.client = client
	s.prefix = prefix
	s.mu.Unlock()
}

// InitRedis 按配置创建客户端；redis.enabled=false 时保持禁用
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		Reset()
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	std.set(client, cfg.Prefix)
	return nil
}

// UseClient 注入现成的客户端，测试里指向 miniredis
func UseClient(client *redis.Client, prefix string) {
	std.set(client, prefix)
}

// Reset 恢复为禁用状态
func Reset() {
	std.set(nil, defaultPrefix)
}

// Enabled 是否配置了 Redis
func Enabled() bool {
	client, _ := std.get()
	return client != nil
}

// Client 返回底层客户端，未启用时为 nil
func Client() *redis.Client {
	client, _ := std.get()
	return client
}

// Prefix 当前键前缀
func Prefix() string {
	_, prefix := std.get()
	return prefix
}

// Ping 健康检查，未启用时视为正常
func Ping(ctx context.Context) error {
	client, _ := std.get()
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}

// GetJSON 读取并反序列化；未启用或未命中返回 false
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, prefix := std.get()
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, Join(prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 序列化后写入，ttl <= 0 表示不过期
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client, prefix := std.get()
	if client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return client.Set(ctx, Join(prefix, key), payload, ttl).Err()
}

// Del 删除键，不存在时不报错
func Del(ctx context.Context, keys ...string) error {
	client, prefix := std.get()
	if client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, Join(prefix, key))
	}
	return client.Del(ctx, full...).Err()
}
