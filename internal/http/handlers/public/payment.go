package public

import (
	"errors"
	"io"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/payment/gateway"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

const callbackBodyLimit = 64 << 10

// PaymentCallbackResponse 回调处理结果
type PaymentCallbackResponse struct {
	OrderNumber   string `json:"order_number"`
	PaymentStatus string `json:"payment_status"`
	Applied       bool   `json:"applied"`
	Idempotent    bool   `json:"idempotent"`
}

// PaymentCallback 在线支付网关回调。
// 被拒绝的回调返回业务错误码（HTTP 200，网关不再重试）；处理异常返回 HTTP 500 让网关重投。
func (h *Handler) PaymentCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, callbackBodyLimit))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.payment_callback_malformed", err)
		return
	}
	signature := c.GetHeader(gateway.SignatureHeader)
	requestLog(c).Infow("payment_callback_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"signed", signature != "",
	)

	result, err := h.PaymentReconciler.HandleGatewayCallback(c.Request.Context(), body, signature)
	if err != nil {
		if errors.Is(err, service.ErrPaymentCallbackRejected) {
			requestLog(c).Warnw("payment_callback_rejected", "error", err)
			handlershared.RespondMappedError(c, err, paymentCallbackErrorRules, response.CodeBadRequest, "error.payment_callback_rejected")
			return
		}
		requestLog(c).Errorw("payment_callback_failed", "error", err)
		response.Fatal(c, handlershared.Message("error.payment_callback_failed"))
		return
	}

	response.Success(c, PaymentCallbackResponse{
		OrderNumber:   result.Order.OrderNumber,
		PaymentStatus: result.Order.PaymentStatus,
		Applied:       result.Applied,
		Idempotent:    result.Idempotent,
	})
}
