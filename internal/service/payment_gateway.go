package service

import (
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/payment/gateway"
)

// GatewaySettings 在线支付网关参数
type GatewaySettings = gateway.Config

// GatewayCallbackPayload 网关回调载荷
type GatewayCallbackPayload = gateway.CallbackPayload

// GatewaySession 交给买家前端跳转网关的会话信息
type GatewaySession struct {
	SessionID   string       `json:"session_id"`
	OrderID     string       `json:"order_id"`
	OrderNumber string       `json:"order_number"`
	Amount      models.Money `json:"amount"`
	Currency    string       `json:"currency"`
	CheckoutURL string       `json:"checkout_url"`
	CallbackURL string       `json:"callback_url"`
}

func newGatewaySession(settings GatewaySettings, order *models.Order) *GatewaySession {
	if order == nil || order.GatewaySession == "" {
		return nil
	}
	return &GatewaySession{
		SessionID:   order.GatewaySession,
		OrderID:     order.OrderToken,
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		CheckoutURL: gateway.CheckoutURL(settings.CheckoutBaseURL, order.GatewaySession),
		CallbackURL: settings.CallbackURL,
	}
}
