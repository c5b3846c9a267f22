package service

import (
	"context"
	"errors"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
)

// CheckoutService 下单入口：写订单后立即按支付方式推进支付状态
type CheckoutService struct {
	orders     *OrderService
	reconciler *PaymentReconciler
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(orders *OrderService, reconciler *PaymentReconciler) *CheckoutService {
	return &CheckoutService{orders: orders, reconciler: reconciler}
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order    *models.Order
	Session  *GatewaySession
	Replayed bool
}

// Checkout 结算路径上的任何失败都会终止本次下单；买家可用同一 client_request_id 重试
func (s *CheckoutService) Checkout(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	created, err := s.orders.CreateOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	order := created.Order
	result := &CheckoutResult{Order: order, Replayed: created.Replayed}

	if order.PaymentStatus != constants.PaymentStatusCreated {
		result.Session = s.reconciler.SessionFor(order)
		return result, nil
	}

	begun, err := s.reconciler.Begin(ctx, order.ID)
	if err != nil {
		if errors.Is(err, ErrPaymentTransitionRejected) {
			// 并发重放已先一步推进，返回最新状态
			fresh, fetchErr := s.orders.GetOrder(ctx, order.OrderNumber)
			if fetchErr != nil {
				return nil, fetchErr
			}
			result.Order = fresh
			result.Session = s.reconciler.SessionFor(fresh)
			return result, nil
		}
		logger.For(ctx).Errorw("checkout_payment_begin_failed", "order_number", order.OrderNumber, "error", err)
		return nil, err
	}
	result.Order = begun.Order
	result.Session = begun.Session
	return result, nil
}
