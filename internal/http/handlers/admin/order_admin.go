package admin

import (
	"errors"
	"strings"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// DispatchReport 手动分单结果
type DispatchReport struct {
	OrderNumber string                           `json:"order_number"`
	Results     []service.SubOrderDispatchResult `json:"results"`
}

// AdminGetOrder 订单详情，支持主键、订单号与买家侧标识
func (h *Handler) AdminGetOrder(c *gin.Context) {
	identifier := strings.TrimSpace(c.Param("id"))
	order, err := h.OrderService.GetOrder(c.Request.Context(), identifier)
	if err != nil {
		handlershared.RespondMappedError(c, err, dispatchErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}

// AdminUpdateOrderStatus 更新订单状态，仅允许 payment_status、status、paid_at
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.UpdateStatus(c.Request.Context(), orderID, patch)
	if err != nil {
		handlershared.RespondMappedError(c, err, orderPatchErrorRules, response.CodeInternal, "error.order_update_failed")
		return
	}

	requestLog(c).Infow("admin_order_status_updated",
		"operator", actor.Subject,
		"order_number", order.OrderNumber,
		"payment_status", order.PaymentStatus,
		"status", order.Status,
	)
	response.Success(c, order)
}

// AdminDispatchOrder 手动触发供应商分单，可重复执行，已发送的供应商不会重复创建
func (h *Handler) AdminDispatchOrder(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}
	identifier := strings.TrimSpace(c.Param("id"))

	results, err := h.FanoutDispatcher.DispatchOrder(c.Request.Context(), identifier)
	report := DispatchReport{OrderNumber: identifier, Results: results}
	if err != nil {
		if errors.Is(err, service.ErrDispatchFailed) {
			requestLog(c).Warnw("admin_dispatch_partial_failure", "operator", actor.Subject, "order", identifier, "error", err)
			response.ErrorWithData(c, response.CodeInternal, handlershared.Message("error.dispatch_failed"), report)
			return
		}
		handlershared.RespondMappedError(c, err, dispatchErrorRules, response.CodeInternal, "error.dispatch_failed")
		return
	}

	requestLog(c).Infow("admin_dispatch_completed", "operator", actor.Subject, "order", identifier, "vendors", len(results))
	response.Success(c, report)
}
