package public

import (
	"io"
	"strings"

	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/models"

	"github.com/gin-gonic/gin"
)

// SettlementRequest 结算后补录请求，地址为空时使用订单收货地址
type SettlementRequest struct {
	Address *models.Address `json:"address"`
}

// AppendSettlement 结算后追加订单与地址历史，可重复调用
func (h *Handler) AppendSettlement(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if req.Address != nil && !req.Address.Complete() {
		respondError(c, response.CodeBadRequest, "error.address_incomplete", nil)
		return
	}

	result, err := h.ProfileCompensator.AppendSettlement(c.Request.Context(), uid, orderNo, req.Address)
	if err != nil {
		respondSettlementError(c, err)
		return
	}

	response.Success(c, result)
}

// GetMyProfile 买家档案（订单历史与地址历史）
func (h *Handler) GetMyProfile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	profile, err := h.ProfileCompensator.GetProfile(c.Request.Context(), uid)
	if err != nil {
		respondError(c, response.CodeInternal, "error.profile_fetch_failed", err)
		return
	}

	response.Success(c, profile)
}
