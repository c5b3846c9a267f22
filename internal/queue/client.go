package queue

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	DefaultQueue  = constants.QueueDefault
	CriticalQueue = constants.QueueCritical

	fanoutMaxRetry = 10
	fanoutTimeout  = 30 * time.Second

	maxRetryBackoff = 10 * time.Minute
)

// ErrEmptyOrderNumber 拆单任务缺少订单号
var ErrEmptyOrderNumber = errors.New("fanout payload missing order number")

// Client asynq 生产端。零值或 nil 表示队列关闭，入队为空操作。
type Client struct {
	inner *asynq.Client
}

// NewClient 按队列配置创建；queue.enabled=false 时返回关闭状态的客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{inner: asynq.NewClient(RedisOpt(cfg))}, nil
}

// Enabled 是否可以入队
func (c *Client) Enabled() bool {
	return c != nil && c.inner != nil
}

// Close 关闭底层连接
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.inner.Close()
}

// EnqueueFanoutDispatch 投递拆单任务到 critical 队列。
// 任务 ID 由订单号派生，同一订单已有待执行任务时按成功处理。
func (c *Client) EnqueueFanoutDispatch(ctx context.Context, payload FanoutDispatchPayload) error {
	if !c.Enabled() {
		return nil
	}
	payload.OrderNumber = strings.TrimSpace(payload.OrderNumber)
	if payload.OrderNumber == "" {
		return ErrEmptyOrderNumber
	}
	task, err := NewFanoutDispatchTask(payload)
	if err != nil {
		return err
	}
	info, err := c.inner.EnqueueContext(ctx, task,
		asynq.Queue(CriticalQueue),
		asynq.TaskID(fanoutTaskID(payload.OrderNumber)),
		asynq.MaxRetry(fanoutMaxRetry),
		asynq.Timeout(fanoutTimeout),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		logger.For(ctx).Debugw("queue_fanout_already_enqueued", "order_number", payload.OrderNumber)
		return nil
	case err != nil:
		return err
	}
	logger.For(ctx).Debugw("queue_fanout_enqueued", "order_number", payload.OrderNumber, "task_id", info.ID, "trigger", payload.Trigger)
	return nil
}

// ServerConfig 消费端配置：并发度、队列权重、重试退避与失败日志
func ServerConfig(cfg *config.QueueConfig) asynq.Config {
	concurrency := 10
	queues := map[string]int{CriticalQueue: 5, DefaultQueue: 1}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			queues = cfg.Queues
		}
	}
	return asynq.Config{
		Concurrency:    concurrency,
		Queues:         queues,
		Logger:         logger.S(),
		RetryDelayFunc: RetryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.For(ctx).Warnw("queue_task_failed",
				"task", task.Type(),
				"retried", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	}
}

// RetryDelay 指数退避：2s, 4s, 8s... 上限 10 分钟
func RetryDelay(retried int, _ error, _ *asynq.Task) time.Duration {
	if retried < 0 {
		retried = 0
	}
	if retried > 16 {
		return maxRetryBackoff
	}
	delay := time.Duration(1<<uint(retried+1)) * time.Second
	if delay > maxRetryBackoff {
		return maxRetryBackoff
	}
	return delay
}

// RedisOpt 队列使用的 Redis 连接，与缓存可以分库
func RedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
