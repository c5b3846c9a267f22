package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	orderNumberPrefix = "ORD"
	orderSequenceName = "order_number"
)

var orderNumberPattern = regexp.MustCompile(`^ORD(\d{6,})$`)

// OrderNumberAllocator 订单号分配器
type OrderNumberAllocator interface {
	NextOrderNumber(ctx context.Context) (string, error)
	Strategy() string
}

// LatestOrderNumberReader 读取最新订单号
type LatestOrderNumberReader interface {
	LatestOrderNumber(ctx context.Context) (string, error)
}

// FormatOrderNumber 序号转展示订单号，不足 6 位左补零
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("%s%06d", orderNumberPrefix, n)
}

// ParseOrderNumber 解析订单号序号，格式不符返回 false
func ParseOrderNumber(orderNumber string) (int64, bool) {
	match := orderNumberPattern.FindStringSubmatch(strings.TrimSpace(orderNumber))
	if len(match) != 2 {
		return 0, false
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// latestSequence 读取最新订单的序号，无订单或格式不符时为 0
func latestSequence(ctx context.Context, orders LatestOrderNumberReader) (int64, error) {
	if orders == nil {
		return 0, nil
	}
	latest, err := orders.LatestOrderNumber(ctx)
	if err != nil {
		return 0, err
	}
	n, ok := ParseOrderNumber(latest)
	if !ok {
		return 0, nil
	}
	return n, nil
}

// LatestOrderAllocator 读取最新订单号后加一。
// 读与写之间没有任何互斥，并发下会分配出重复订单号，只依赖唯一索引兜底。
type LatestOrderAllocator struct {
	orders LatestOrderNumberReader
}

// NewLatestOrderAllocator 创建按最新订单推算的分配器
func NewLatestOrderAllocator(orders LatestOrderNumberReader) *LatestOrderAllocator {
	return &LatestOrderAllocator{orders: orders}
}

func (a *LatestOrderAllocator) Strategy() string { return config.SequenceStrategyLatest }

// NextOrderNumber 分配下一个订单号
func (a *LatestOrderAllocator) NextOrderNumber(ctx context.Context) (string, error) {
	n, err := latestSequence(ctx, a.orders)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	return FormatOrderNumber(n + 1), nil
}

// CounterAllocator 数据库计数器行原子自增
type CounterAllocator struct {
	sequences repository.SequenceRepository
	orders    LatestOrderNumberReader
}

// NewCounterAllocator 创建计数器分配器，计数器首次创建时以现有最新订单号为起点
func NewCounterAllocator(sequences repository.SequenceRepository, orders LatestOrderNumberReader) *CounterAllocator {
	return &CounterAllocator{sequences: sequences, orders: orders}
}

func (a *CounterAllocator) Strategy() string { return config.SequenceStrategyDB }

// NextOrderNumber 分配下一个订单号
func (a *CounterAllocator) NextOrderNumber(ctx context.Context) (string, error) {
	if a.sequences == nil {
		return "", fmt.Errorf("%w: sequence repository missing", ErrAllocationFailed)
	}
	n, err := a.sequences.Next(ctx, orderSequenceName, func(ctx context.Context) (int64, error) {
		return latestSequence(ctx, a.orders)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	return FormatOrderNumber(n), nil
}

// RedisAllocator Redis INCR 分配，键不存在时以数据库最新订单号初始化
type RedisAllocator struct {
	client *redis.Client
	key    string
	orders LatestOrderNumberReader
}

// NewRedisAllocator 创建 Redis 分配器，计数器键位于 prefix 之下
func NewRedisAllocator(client *redis.Client, prefix string, orders LatestOrderNumberReader) *RedisAllocator {
	return &RedisAllocator{
		client: client,
		key:    cache.Join(prefix, cache.OrderSequenceKey()),
		orders: orders,
	}
}

func (a *RedisAllocator) Strategy() string { return config.SequenceStrategyRedis }

// NextOrderNumber 分配下一个订单号
func (a *RedisAllocator) NextOrderNumber(ctx context.Context) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("%w: redis client missing", ErrAllocationFailed)
	}
	exists, err := a.client.Exists(ctx, a.key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	if exists == 0 {
		seed, err := latestSequence(ctx, a.orders)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}
		// 多个实例同时初始化时只有第一个 SETNX 生效
		if err := a.client.SetNX(ctx, a.key, seed, 0).Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}
	}
	n, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	return FormatOrderNumber(n), nil
}

// NewOrderNumberAllocator 按配置选择分配策略；redis 策略缺少客户端时回落到数据库计数器
func NewOrderNumberAllocator(strategy string, sequences repository.SequenceRepository, orders LatestOrderNumberReader, redisClient *redis.Client, redisPrefix string) OrderNumberAllocator {
	switch config.NormalizeSequenceStrategy(strategy) {
	case config.SequenceStrategyLatest:
		logger.Warnw("order_number_allocator_unsafe_strategy", "strategy", config.SequenceStrategyLatest)
		return NewLatestOrderAllocator(orders)
	case config.SequenceStrategyRedis:
		if redisClient != nil {
			return NewRedisAllocator(redisClient, redisPrefix, orders)
		}
		logger.Warnw("order_number_allocator_redis_unavailable", "fallback", config.SequenceStrategyDB)
	}
	return NewCounterAllocator(sequences, orders)
}

// isAllocationError 判断错误是否来自订单号分配
func isAllocationError(err error) bool {
	return errors.Is(err, ErrAllocationFailed)
}
