package public

import (
	"github.com/bazaar-next/internal/provider"
	"github.com/bazaar-next/internal/service"
)

// Handler 买家接口与网关回调
type Handler struct {
	OrderService       *service.OrderService
	CheckoutService    *service.CheckoutService
	PaymentReconciler  *service.PaymentReconciler
	ProfileCompensator *service.ProfileCompensator
}

func New(c *provider.Container) *Handler {
	return &Handler{
		OrderService:       c.OrderService,
		CheckoutService:    c.CheckoutService,
		PaymentReconciler:  c.PaymentReconciler,
		ProfileCompensator: c.ProfileCompensator,
	}
}
