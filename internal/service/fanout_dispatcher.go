package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/metrics"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/repository"
)

// SubOrderDispatchResult 单个供应商的分单结果
type SubOrderDispatchResult struct {
	VendorID   uint   `json:"vendor_id"`
	SubOrderID uint   `json:"sub_order_id,omitempty"`
	Outcome    string `json:"outcome"` // sent / already_sent / error
	Error      string `json:"error,omitempty"`
}

// VendorGroup 同一供应商的订单项
type VendorGroup struct {
	VendorID uint
	Items    []models.OrderItem
}

// PartitionByVendor 按供应商分组，组顺序为供应商首次出现的顺序，组内保持原顺序
func PartitionByVendor(items []models.OrderItem) []VendorGroup {
	index := make(map[uint]int)
	groups := make([]VendorGroup, 0)
	for _, item := range items {
		pos, ok := index[item.VendorID]
		if !ok {
			pos = len(groups)
			index[item.VendorID] = pos
			groups = append(groups, VendorGroup{VendorID: item.VendorID})
		}
		groups[pos].Items = append(groups[pos].Items, item)
	}
	return groups
}

// FanoutDispatcher 为已结算订单生成供应商子订单，可重复执行
type FanoutDispatcher struct {
	orderRepo    repository.OrderRepository
	subOrderRepo repository.SubOrderRepository
	metrics      *metrics.Metrics
}

// NewFanoutDispatcher 创建分单服务
func NewFanoutDispatcher(orderRepo repository.OrderRepository, subOrderRepo repository.SubOrderRepository, m *metrics.Metrics) *FanoutDispatcher {
	return &FanoutDispatcher{
		orderRepo:    orderRepo,
		subOrderRepo: subOrderRepo,
		metrics:      m,
	}
}

// DispatchOrder 按订单标识加载后分单
func (d *FanoutDispatcher) DispatchOrder(ctx context.Context, identifier string) ([]SubOrderDispatchResult, error) {
	order, err := resolveOrder(ctx, d.orderRepo, identifier)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return d.Dispatch(ctx, order)
}

// Dispatch 每个供应商独立处理：已存在记为 already_sent，新建记为 sent，失败记为 error。
// 任一供应商失败时返回的 error 包装 ErrDispatchFailed，结果切片仍完整返回。
func (d *FanoutDispatcher) Dispatch(ctx context.Context, order *models.Order) ([]SubOrderDispatchResult, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !isSettled(order) {
		return nil, ErrOrderNotSettled
	}
	log := logger.For(ctx, "order_number", order.OrderNumber)

	groups := PartitionByVendor(order.Items)
	results := make([]SubOrderDispatchResult, 0, len(groups))
	failed := 0
	for _, group := range groups {
		result := d.dispatchVendor(ctx, order, group)
		d.metrics.DispatchOutcome(result.Outcome)
		switch result.Outcome {
		case constants.DispatchOutcomeError:
			failed++
			log.Errorw("fanout_vendor_failed", "vendor_id", group.VendorID, "error", result.Error)
		case constants.DispatchOutcomeAlreadySent:
			log.Debugw("fanout_vendor_already_sent", "vendor_id", group.VendorID)
		default:
			log.Infow("fanout_vendor_sent", "vendor_id", group.VendorID, "sub_order_id", result.SubOrderID)
		}
		results = append(results, result)
	}
	log.Infow("fanout_dispatch_finished", "vendors", len(groups), "failed", failed)
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d vendors", ErrDispatchFailed, failed, len(groups))
	}
	return results, nil
}

func (d *FanoutDispatcher) dispatchVendor(ctx context.Context, order *models.Order, group VendorGroup) SubOrderDispatchResult {
	result := SubOrderDispatchResult{VendorID: group.VendorID}
	exists, err := d.subOrderRepo.Exists(ctx, order.OrderNumber, group.VendorID)
	if err != nil {
		result.Outcome = constants.DispatchOutcomeError
		result.Error = err.Error()
		return result
	}
	if exists {
		result.Outcome = constants.DispatchOutcomeAlreadySent
		return result
	}

	subOrder := buildSubOrder(order, group)
	if err := d.subOrderRepo.Create(ctx, subOrder); err != nil {
		// 预检查与写入之间被并发写入，唯一约束兜底
		if errors.Is(err, repository.ErrSubOrderExists) {
			result.Outcome = constants.DispatchOutcomeAlreadySent
			return result
		}
		result.Outcome = constants.DispatchOutcomeError
		result.Error = err.Error()
		return result
	}
	result.Outcome = constants.DispatchOutcomeSent
	result.SubOrderID = subOrder.ID
	return result
}

func buildSubOrder(order *models.Order, group VendorGroup) *models.SubOrder {
	subtotal := models.Money{}
	items := make([]models.SubOrderItem, 0, len(group.Items))
	for _, item := range group.Items {
		subtotal = subtotal.Plus(item.LineTotal)
		items = append(items, models.SubOrderItem{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Variant:     item.Variant,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return &models.SubOrder{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		VendorID:    group.VendorID,
		Status:      constants.SubOrderStatusPending,
		Currency:    order.Currency,
		Subtotal:    subtotal,
		BuyerName:   order.BuyerName,
		BuyerPhone:  order.BuyerPhone,
		ShipTo:      order.Shipping,
		Items:       items,
	}
}

// SweepResult 补偿扫描结果
type SweepResult struct {
	Scanned int `json:"scanned"`
	Failed  int `json:"failed"`
}

// SweepPending 找出结算超过 grace 仍未分完的订单重新分单，队列丢任务时兜底
func (d *FanoutDispatcher) SweepPending(ctx context.Context, grace time.Duration, limit int) (*SweepResult, error) {
	orders, err := d.orderRepo.ListPendingDispatch(ctx, time.Now().Add(-grace), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	result := &SweepResult{Scanned: len(orders)}
	for i := range orders {
		if _, err := d.Dispatch(ctx, &orders[i]); err != nil {
			result.Failed++
			logger.For(ctx).Warnw("fanout_sweep_order_failed", "order_number", orders[i].OrderNumber, "error", err)
		}
	}
	if result.Scanned > 0 {
		logger.For(ctx).Infow("fanout_sweep_finished", "scanned", result.Scanned, "failed", result.Failed)
	}
	return result, nil
}

// DispatchTrigger 结算成功后触发分单
type DispatchTrigger interface {
	TriggerDispatch(ctx context.Context, order *models.Order, reason string) error
}

// FanoutEnqueuer 拆单任务入队
type FanoutEnqueuer interface {
	Enabled() bool
	EnqueueFanoutDispatch(ctx context.Context, payload queue.FanoutDispatchPayload) error
}

// QueuedDispatchTrigger 队列可用时异步分单（失败由 worker 重试），否则同步执行
type QueuedDispatchTrigger struct {
	queue      FanoutEnqueuer
	dispatcher *FanoutDispatcher
}

// NewQueuedDispatchTrigger 创建分单触发器
func NewQueuedDispatchTrigger(q FanoutEnqueuer, dispatcher *FanoutDispatcher) *QueuedDispatchTrigger {
	return &QueuedDispatchTrigger{queue: q, dispatcher: dispatcher}
}

// TriggerDispatch 触发分单
func (t *QueuedDispatchTrigger) TriggerDispatch(ctx context.Context, order *models.Order, reason string) error {
	if order == nil {
		return ErrOrderNotFound
	}
	if t.queue != nil && t.queue.Enabled() {
		err := t.queue.EnqueueFanoutDispatch(ctx, queue.FanoutDispatchPayload{
			OrderNumber: order.OrderNumber,
			Trigger:     reason,
		})
		if err == nil {
			return nil
		}
		logger.For(ctx).Warnw("fanout_enqueue_failed_dispatch_inline", "order_number", order.OrderNumber, "error", err)
	}
	if t.dispatcher == nil {
		return fmt.Errorf("%w: dispatcher unavailable", ErrDispatchFailed)
	}
	_, err := t.dispatcher.Dispatch(ctx, order)
	return err
}
