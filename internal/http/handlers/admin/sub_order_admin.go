package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/repository"

	"github.com/gin-gonic/gin"
)

type subOrderStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

// ListSubOrders 子订单列表；供应商只看到自己的，运营可按 vendor_id 过滤
func (h *Handler) ListSubOrders(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}

	page, pageSize := handlershared.PageQuery(c)

	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	var vendorID uint
	if raw := strings.TrimSpace(c.Query("vendor_id")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.vendor_id_invalid", err)
			return
		}
		vendorID = uint(parsed)
	}

	subOrders, total, err := h.SubOrderService.ListForVendor(c.Request.Context(), actor, repository.SubOrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		VendorID:    vendorID,
		Status:      strings.TrimSpace(c.Query("status")),
		OrderNumber: strings.TrimSpace(c.Query("order_number")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, subOrderErrorRules, response.CodeInternal, "error.sub_order_fetch_failed")
		return
	}

	response.SuccessWithPage(c, subOrders, page, pageSize, total)
}

// GetSubOrder 子订单详情
func (h *Handler) GetSubOrder(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	subOrder, err := h.SubOrderService.Get(c.Request.Context(), actor, id)
	if err != nil {
		handlershared.RespondMappedError(c, err, subOrderErrorRules, response.CodeInternal, "error.sub_order_fetch_failed")
		return
	}
	response.Success(c, subOrder)
}

// UpdateSubOrderStatus 推进子订单状态，整单聚合状态随之更新
func (h *Handler) UpdateSubOrderStatus(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req subOrderStatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	subOrder, err := h.SubOrderService.UpdateStatus(c.Request.Context(), actor, id, strings.TrimSpace(req.Status))
	if err != nil {
		handlershared.RespondMappedError(c, err, subOrderErrorRules, response.CodeInternal, "error.sub_order_update_failed")
		return
	}

	requestLog(c).Infow("sub_order_status_updated",
		"operator", actor.Subject,
		"sub_order_id", subOrder.ID,
		"status", subOrder.Status,
	)
	response.Success(c, subOrder)
}
