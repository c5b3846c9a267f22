package admin

import (
	"github.com/bazaar-next/internal/authz"
	"github.com/bazaar-next/internal/provider"
	"github.com/bazaar-next/internal/service"
)

// Handler 运营与供应商后台接口。
// 令牌校验与路由授权已在中间件完成，这里只按 StaffActor 收敛数据范围。
type Handler struct {
	AuthzService     *authz.Service
	OrderService     *service.OrderService
	SubOrderService  *service.SubOrderService
	FanoutDispatcher *service.FanoutDispatcher
}

func New(c *provider.Container) *Handler {
	return &Handler{
		AuthzService:     c.AuthzService,
		OrderService:     c.OrderService,
		SubOrderService:  c.SubOrderService,
		FanoutDispatcher: c.FanoutDispatcher,
	}
}
