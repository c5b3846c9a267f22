package worker

import (
	"context"
	"errors"

	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/provider"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	dispatcher *service.FanoutDispatcher
}

// NewConsumer 从容器取出消费者需要的服务
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil {
		return &Consumer{}
	}
	return &Consumer{dispatcher: c.FanoutDispatcher}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskFanoutDispatch, c.handleFanoutDispatch)
}

// handleFanoutDispatch 返回错误即交给 asynq 重试；订单不存在或未结算属于永久性失败，直接丢弃
func (c *Consumer) handleFanoutDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_fanout_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseFanoutDispatchPayload(task.Payload())
	if err != nil {
		logger.Warnw("worker_fanout_dispatch_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderNumber == "" {
		logger.Debugw("worker_fanout_dispatch_skip_invalid_payload")
		return nil
	}
	if c.dispatcher == nil {
		logger.Warnw("worker_fanout_dispatch_skip_dispatcher_nil", "order_number", payload.OrderNumber)
		return nil
	}
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		ctx = logger.ContextWithRequestID(ctx, taskID)
	}
	log := logger.For(ctx, "order_number", payload.OrderNumber, "trigger", payload.Trigger)

	results, err := c.dispatcher.DispatchOrder(ctx, payload.OrderNumber)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			log.Debugw("worker_fanout_dispatch_skip_order_not_found")
			return nil
		case errors.Is(err, service.ErrOrderNotSettled):
			log.Debugw("worker_fanout_dispatch_skip_not_settled")
			return nil
		case errors.Is(err, service.ErrDispatchFailed):
			log.Warnw("worker_fanout_dispatch_partial_failure", "results", results, "error", err)
			return err
		default:
			log.Warnw("worker_fanout_dispatch_failed", "error", err)
			return err
		}
	}
	log.Debugw("worker_fanout_dispatch_done", "vendors", len(results))
	return nil
}
