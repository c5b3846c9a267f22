package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"
)

// StaffActor 后台操作人（运营或供应商），来自 staff token
type StaffActor struct {
	Subject  string
	Role     string
	VendorID uint
}

func (a StaffActor) isVendor() bool {
	return a.Role == constants.StaffRoleVendor
}

// SubOrderService 子订单履约服务
type SubOrderService struct {
	orderRepo    repository.OrderRepository
	subOrderRepo repository.SubOrderRepository
	now          func() time.Time
}

// NewSubOrderService 创建子订单服务
func NewSubOrderService(orderRepo repository.OrderRepository, subOrderRepo repository.SubOrderRepository) *SubOrderService {
	return &SubOrderService{
		orderRepo:    orderRepo,
		subOrderRepo: subOrderRepo,
		now:          time.Now,
	}
}

// ListForVendor 供应商查看自己的子订单
func (s *SubOrderService) ListForVendor(ctx context.Context, actor StaffActor, filter repository.SubOrderListFilter) ([]models.SubOrder, int64, error) {
	if actor.isVendor() {
		if actor.VendorID == 0 {
			return nil, 0, ErrSubOrderForbidden
		}
		filter.VendorID = actor.VendorID
	}
	subOrders, total, err := s.subOrderRepo.ListByVendor(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return subOrders, total, nil
}

// Get 查询子订单，供应商只能查看自己的
func (s *SubOrderService) Get(ctx context.Context, actor StaffActor, id uint) (*models.SubOrder, error) {
	subOrder, err := s.subOrderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if subOrder == nil {
		return nil, ErrSubOrderNotFound
	}
	if actor.isVendor() && subOrder.VendorID != actor.VendorID {
		// 不暴露其它供应商子订单的存在
		return nil, ErrSubOrderNotFound
	}
	return subOrder, nil
}

// UpdateStatus 推进子订单状态并重新汇总整单状态
func (s *SubOrderService) UpdateStatus(ctx context.Context, actor StaffActor, id uint, target string) (*models.SubOrder, error) {
	if !isSubOrderStatus(target) {
		return nil, ErrStatusValueInvalid
	}
	subOrder, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if subOrder.Status == target {
		return subOrder, nil
	}
	if !allowedSubOrderTransitions[subOrder.Status][target] {
		return nil, ErrSubOrderStatusTransition
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	switch target {
	case constants.SubOrderStatusShipped:
		updates["shipped_at"] = now
	case constants.SubOrderStatusDelivered:
		updates["delivered_at"] = now
	case constants.SubOrderStatusCancelled:
		updates["cancelled_at"] = now
	}
	applied, err := s.subOrderRepo.CompareAndUpdateStatus(ctx, subOrder.ID, subOrder.Status, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !applied {
		return nil, ErrSubOrderStatusTransition
	}

	log := logger.For(ctx,
		"order_number", subOrder.OrderNumber,
		"sub_order_id", subOrder.ID,
		"vendor_id", subOrder.VendorID,
		"actor", actor.Subject,
	)
	log.Infow("sub_order_status_updated", "from", subOrder.Status, "to", target)

	aggregate, err := syncOrderStatus(ctx, s.orderRepo, s.subOrderRepo, subOrder.OrderNumber, now)
	if err != nil {
		// 子订单已更新，整单状态下次推进时会再次汇总
		log.Warnw("order_status_sync_failed", "error", err)
	} else {
		log.Debugw("order_status_synced", "status", aggregate)
	}
	return s.Get(ctx, actor, subOrder.ID)
}
