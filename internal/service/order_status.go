package service

import (
	"context"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"
)

// 聚合订单状态流转
var allowedOrderTransitions = map[string]map[string]bool{
	constants.OrderStatusProcessing: {
		constants.OrderStatusShipped:   true,
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusShipped: {
		constants.OrderStatusDelivered: true,
	},
}

// 子订单（供应商履约）状态流转
var allowedSubOrderTransitions = map[string]map[string]bool{
	constants.SubOrderStatusPending: {
		constants.SubOrderStatusProcessing: true,
		constants.SubOrderStatusShipped:    true,
		constants.SubOrderStatusCancelled:  true,
	},
	constants.SubOrderStatusProcessing: {
		constants.SubOrderStatusShipped:   true,
		constants.SubOrderStatusCancelled: true,
	},
	constants.SubOrderStatusShipped: {
		constants.SubOrderStatusDelivered: true,
	},
}

// 支付状态流转，按支付方式区分入口
var allowedPaymentTransitions = map[string]map[string]bool{
	constants.PaymentStatusCreated: {
		constants.PaymentStatusPending: true,
		constants.PaymentStatusUnpaid:  true,
	},
	constants.PaymentStatusPending: {
		constants.PaymentStatusConfirmed: true, // 货到付款收款完成
	},
	constants.PaymentStatusUnpaid: {
		constants.PaymentStatusConfirmed: true,
		constants.PaymentStatusFailed:    true,
	},
}

func canTransitPayment(method, from, to string) bool {
	if !allowedPaymentTransitions[from][to] {
		return false
	}
	switch to {
	case constants.PaymentStatusPending:
		return method == constants.PaymentMethodCOD
	case constants.PaymentStatusUnpaid, constants.PaymentStatusFailed:
		return method == constants.PaymentMethodOnline
	}
	return true
}

func isPaymentStatus(value string) bool {
	switch value {
	case constants.PaymentStatusCreated,
		constants.PaymentStatusPending,
		constants.PaymentStatusUnpaid,
		constants.PaymentStatusConfirmed,
		constants.PaymentStatusFailed,
		constants.PaymentStatusProcessing:
		return true
	}
	return false
}

func isOrderStatus(value string) bool {
	switch value {
	case constants.OrderStatusProcessing,
		constants.OrderStatusShipped,
		constants.OrderStatusDelivered,
		constants.OrderStatusCancelled:
		return true
	}
	return false
}

func isSubOrderStatus(value string) bool {
	switch value {
	case constants.SubOrderStatusPending,
		constants.SubOrderStatusProcessing,
		constants.SubOrderStatusShipped,
		constants.SubOrderStatusDelivered,
		constants.SubOrderStatusCancelled:
		return true
	}
	return false
}

// isSettled 货到付款已受理或在线支付已确认
func isSettled(order *models.Order) bool {
	if order == nil {
		return false
	}
	switch order.PaymentStatus {
	case constants.PaymentStatusConfirmed:
		return true
	case constants.PaymentStatusPending:
		return order.PaymentMethod == constants.PaymentMethodCOD
	}
	return false
}

// syncOrderStatus 由子订单汇总聚合状态并写入
func syncOrderStatus(ctx context.Context, orderRepo repository.OrderRepository, subOrderRepo repository.SubOrderRepository, orderNumber string, now time.Time) (string, error) {
	order, err := orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", nil
	}
	if order.Status == constants.OrderStatusCancelled {
		return order.Status, nil
	}
	subOrders, err := subOrderRepo.ListByOrder(ctx, orderNumber)
	if err != nil {
		return "", err
	}
	newStatus := calcOrderStatus(order.Items, subOrders, order.Status)
	if newStatus == order.Status {
		return order.Status, nil
	}
	if err := orderRepo.Update(ctx, order.ID, map[string]interface{}{
		"status":     newStatus,
		"updated_at": now,
	}); err != nil {
		return "", err
	}
	return newStatus, nil
}

// calcOrderStatus 全部取消为 cancelled；其余子订单全部送达为 delivered，
// 全部已发货或送达为 shipped，否则 processing。已取消的子订单不阻塞整单推进；
// 订单明细里还没有子订单的供应商按未发货计。
func calcOrderStatus(items []models.OrderItem, subOrders []models.SubOrder, currentStatus string) string {
	dispatched := make(map[uint]struct{}, len(subOrders))
	var cancelledCount, deliveredCount, shippedCount int
	for _, subOrder := range subOrders {
		dispatched[subOrder.VendorID] = struct{}{}
		switch subOrder.Status {
		case constants.SubOrderStatusCancelled:
			cancelledCount++
		case constants.SubOrderStatusDelivered:
			deliveredCount++
		case constants.SubOrderStatusShipped:
			shippedCount++
		}
	}
	undispatched := make(map[uint]struct{})
	for _, item := range items {
		if _, ok := dispatched[item.VendorID]; !ok {
			undispatched[item.VendorID] = struct{}{}
		}
	}
	if len(subOrders) == 0 && len(undispatched) == 0 {
		return currentStatus
	}

	active := len(subOrders) - cancelledCount + len(undispatched)
	switch {
	case active == 0:
		return constants.OrderStatusCancelled
	case deliveredCount == active:
		return constants.OrderStatusDelivered
	case deliveredCount+shippedCount == active:
		return constants.OrderStatusShipped
	default:
		return constants.OrderStatusProcessing
	}
}
