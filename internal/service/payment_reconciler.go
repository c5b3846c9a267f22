package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/metrics"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/payment/gateway"
	"github.com/bazaar-next/internal/repository"

	"github.com/google/uuid"
)

// PaymentReconciler 订单支付状态机：
// created -> pending(货到付款) / unpaid(等待网关) -> confirmed / failed
type PaymentReconciler struct {
	orderRepo repository.OrderRepository
	trigger   DispatchTrigger
	gateway   GatewaySettings
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPaymentReconciler 创建支付对账服务
func NewPaymentReconciler(orderRepo repository.OrderRepository, trigger DispatchTrigger, settings GatewaySettings, m *metrics.Metrics) *PaymentReconciler {
	return &PaymentReconciler{
		orderRepo: orderRepo,
		trigger:   trigger,
		gateway:   settings,
		metrics:   m,
		now:       time.Now,
	}
}

// BeginResult 发起支付结果，在线支付附带网关会话
type BeginResult struct {
	Order   *models.Order
	Session *GatewaySession
}

// Begin 依据支付方式推进 created 状态。只有第一次调用生效，重复调用返回 ErrPaymentTransitionRejected。
func (r *PaymentReconciler) Begin(ctx context.Context, orderID uint) (*BeginResult, error) {
	order, err := r.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	log := logger.For(ctx, "order_number", order.OrderNumber, "payment_method", order.PaymentMethod)

	now := r.now()
	updates := map[string]interface{}{"updated_at": now}
	var target string
	switch order.PaymentMethod {
	case constants.PaymentMethodCOD:
		target = constants.PaymentStatusPending
		updates["status"] = constants.OrderStatusProcessing
	case constants.PaymentMethodOnline:
		target = constants.PaymentStatusUnpaid
		updates["gateway_session"] = uuid.NewString()
	default:
		return nil, ErrPaymentMethodInvalid
	}
	updates["payment_status"] = target

	applied, err := r.orderRepo.CompareAndUpdatePayment(ctx, order.ID, constants.PaymentStatusCreated, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	if !applied {
		log.Warnw("payment_begin_rejected", "payment_status", order.PaymentStatus)
		return nil, ErrPaymentTransitionRejected
	}
	r.metrics.PaymentTransition(order.PaymentMethod, target)
	log.Infow("payment_begin_applied", "payment_status", target)

	fresh, err := r.orderRepo.GetByID(ctx, order.ID)
	if err != nil || fresh == nil {
		// 条件更新已生效，按内存中的新状态继续
		log.Warnw("payment_begin_reload_failed", "error", err)
		fresh = order
		applyPaymentUpdates(fresh, updates)
	}
	result := &BeginResult{Order: fresh}
	if target == constants.PaymentStatusPending {
		r.triggerDispatch(ctx, fresh, "cod_begin")
	} else {
		result.Session = newGatewaySession(r.gateway, fresh)
	}
	return result, nil
}

// SessionFor 返回在线支付订单当前的网关会话
func (r *PaymentReconciler) SessionFor(order *models.Order) *GatewaySession {
	if order == nil || order.PaymentMethod != constants.PaymentMethodOnline || order.PaymentStatus != constants.PaymentStatusUnpaid {
		return nil
	}
	return newGatewaySession(r.gateway, order)
}

// CallbackResult 回调处理结果，Idempotent 表示订单已是终态，本次未做变更
type CallbackResult struct {
	Order      *models.Order
	Applied    bool
	Idempotent bool
}

// HandleGatewayCallback 校验签名后推进 unpaid -> confirmed / failed。
// 已终态订单重复回调不变更，已确认的订单不会回退。
func (r *PaymentReconciler) HandleGatewayCallback(ctx context.Context, body []byte, signature string) (*CallbackResult, error) {
	if err := gateway.Verify(r.gateway.CallbackSecret, body, signature); err != nil {
		r.metrics.GatewayCallback("bad_signature")
		logger.For(ctx).Warnw("payment_callback_signature_invalid")
		return nil, ErrPaymentSignatureInvalid
	}
	payload, err := gateway.ParseCallback(body)
	if err != nil {
		r.metrics.GatewayCallback("malformed")
		logger.For(ctx).Warnw("payment_callback_malformed", "error", err)
		return nil, ErrPaymentCallbackMalformed
	}
	outcome := payload.Status
	if outcome != constants.GatewayOutcomeSuccess && outcome != constants.GatewayOutcomeFailure {
		r.metrics.GatewayCallback("malformed")
		return nil, ErrPaymentCallbackMalformed
	}

	order, err := r.findCallbackOrder(ctx, *payload)
	if err != nil {
		return nil, err
	}
	log := logger.For(ctx,
		"order_number", order.OrderNumber,
		"outcome", outcome,
		"transaction_id", payload.TransactionID,
	)
	if order.PaymentMethod != constants.PaymentMethodOnline {
		r.metrics.GatewayCallback("rejected")
		log.Warnw("payment_callback_non_gateway_order", "payment_method", order.PaymentMethod)
		return nil, fmt.Errorf("%w: order is not an online payment", ErrPaymentCallbackRejected)
	}
	if isTerminalPayment(order.PaymentStatus) {
		r.metrics.GatewayCallback("idempotent")
		log.Infow("payment_callback_already_terminal", "payment_status", order.PaymentStatus)
		return &CallbackResult{Order: order, Idempotent: true}, nil
	}
	if outcome == constants.GatewayOutcomeSuccess {
		if err := checkCallbackAmount(order, *payload); err != nil {
			r.metrics.GatewayCallback("rejected")
			log.Warnw("payment_callback_amount_mismatch", "amount", payload.Amount, "expected", order.TotalAmount.String())
			return nil, err
		}
	}

	now := r.now()
	target := constants.PaymentStatusFailed
	updates := map[string]interface{}{"updated_at": now}
	if outcome == constants.GatewayOutcomeSuccess {
		target = constants.PaymentStatusConfirmed
		updates["status"] = constants.OrderStatusProcessing
		updates["paid_at"] = now
	}
	updates["payment_status"] = target

	applied, err := r.orderRepo.CompareAndUpdatePayment(ctx, order.ID, constants.PaymentStatusUnpaid, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	fresh, err := r.orderRepo.GetByID(ctx, order.ID)
	if err != nil || fresh == nil {
		return nil, fmt.Errorf("%w: reload after callback", ErrOrderFetchFailed)
	}
	if !applied {
		if isTerminalPayment(fresh.PaymentStatus) {
			r.metrics.GatewayCallback("idempotent")
			log.Infow("payment_callback_already_terminal", "payment_status", fresh.PaymentStatus)
			return &CallbackResult{Order: fresh, Idempotent: true}, nil
		}
		r.metrics.GatewayCallback("rejected")
		log.Warnw("payment_callback_unexpected_state", "payment_status", fresh.PaymentStatus)
		return nil, fmt.Errorf("%w: payment status %s", ErrPaymentCallbackRejected, fresh.PaymentStatus)
	}

	r.metrics.GatewayCallback("applied")
	r.metrics.PaymentTransition(fresh.PaymentMethod, target)
	log.Infow("payment_callback_applied", "payment_status", target)
	if target == constants.PaymentStatusConfirmed {
		r.triggerDispatch(ctx, fresh, "gateway_confirmed")
	}
	return &CallbackResult{Order: fresh, Applied: true}, nil
}

func (r *PaymentReconciler) findCallbackOrder(ctx context.Context, payload GatewayCallbackPayload) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	switch {
	case payload.SessionID != "":
		order, err = r.orderRepo.GetByGatewaySession(ctx, payload.SessionID)
	case payload.OrderID != "":
		order, err = r.orderRepo.GetByToken(ctx, payload.OrderID)
	default:
		order, err = r.orderRepo.GetByOrderNumber(ctx, payload.OrderNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		r.metrics.GatewayCallback("unknown_order")
		logger.For(ctx).Warnw("payment_callback_unknown_order",
			"session_id", payload.SessionID,
			"order_id", payload.OrderID,
			"order_number", payload.OrderNumber,
		)
		return nil, ErrPaymentCallbackUnknownOrder
	}
	return order, nil
}

// checkCallbackAmount 网关带了金额时必须与订单总额一致
func checkCallbackAmount(order *models.Order, payload GatewayCallbackPayload) error {
	raw := payload.Amount
	if raw == "" {
		return nil
	}
	amount, err := models.ParseMoney(raw)
	if err != nil {
		return ErrPaymentCallbackMalformed
	}
	if !amount.Equal(order.TotalAmount.Decimal) {
		return ErrPaymentAmountMismatch
	}
	if payload.Currency != "" && !strings.EqualFold(payload.Currency, order.Currency) {
		return ErrPaymentAmountMismatch
	}
	return nil
}

// triggerDispatch 结算后触发拆单；失败只记录日志，可由后台重新触发
func (r *PaymentReconciler) triggerDispatch(ctx context.Context, order *models.Order, reason string) {
	if r.trigger == nil {
		return
	}
	if err := r.trigger.TriggerDispatch(ctx, order, reason); err != nil {
		logger.For(ctx).Errorw("fanout_trigger_failed",
			"order_number", order.OrderNumber,
			"reason", reason,
			"error", err,
		)
	}
}

// isTerminalPayment 网关订单的终态，之后的回调都是重复投递
func isTerminalPayment(status string) bool {
	return status == constants.PaymentStatusConfirmed || status == constants.PaymentStatusFailed
}

// applyPaymentUpdates 把已写库的条件更新同步到内存中的订单
func applyPaymentUpdates(order *models.Order, updates map[string]interface{}) {
	if v, ok := updates["payment_status"].(string); ok {
		order.PaymentStatus = v
	}
	if v, ok := updates["status"].(string); ok {
		order.Status = v
	}
	if v, ok := updates["gateway_session"].(string); ok {
		order.GatewaySession = v
	}
	if v, ok := updates["updated_at"].(time.Time); ok {
		order.UpdatedAt = v
	}
}
