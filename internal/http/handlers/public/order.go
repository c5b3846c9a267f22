package public

import (
	"strings"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderItemRequest 订单项请求，客户端单价一律忽略
type OrderItemRequest struct {
	ProductID uint        `json:"product_id" binding:"required"`
	VendorID  uint        `json:"vendor_id"`
	Quantity  int         `json:"quantity" binding:"required"`
	Variant   models.JSON `json:"variant"`
}

// BuyerRequest 买家联系方式
type BuyerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CheckoutRequest 下单请求；total_amount 等客户端金额字段不参与计算
type CheckoutRequest struct {
	ClientRequestID string             `json:"client_request_id"`
	Buyer           BuyerRequest       `json:"buyer"`
	ShippingAddress models.Address     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	Items           []OrderItemRequest `json:"items"`
}

// CheckoutResponse 下单返回
type CheckoutResponse struct {
	Order          *models.Order           `json:"order"`
	GatewaySession *service.GatewaySession `json:"gateway_session,omitempty"`
	Replayed       bool                    `json:"replayed"`
}

// Checkout 创建订单并推进支付状态
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
		})
	}

	result, err := h.CheckoutService.Checkout(c.Request.Context(), service.CreateOrderInput{
		BuyerID:         uid,
		ClientRequestID: strings.TrimSpace(req.ClientRequestID),
		Buyer: service.BuyerContact{
			Name:  req.Buyer.Name,
			Email: req.Buyer.Email,
			Phone: req.Buyer.Phone,
		},
		Shipping:      req.ShippingAddress,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	response.Success(c, CheckoutResponse{
		Order:          result.Order,
		GatewaySession: result.Session,
		Replayed:       result.Replayed,
	})
}

// ListOrders 买家订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, pageSize := handlershared.PageQuery(c)

	orders, total, err := h.OrderService.ListBuyerOrders(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	response.SuccessWithPage(c, orders, page, pageSize, total)
}

// GetOrder 按订单号或订单标识获取买家自己的订单，附带子订单摘要
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	order, err := h.OrderService.GetBuyerOrder(c.Request.Context(), uid, orderNo)
	if err != nil {
		respondOrderQueryError(c, err)
		return
	}

	response.Success(c, order)
}
