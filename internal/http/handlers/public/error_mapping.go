package public

import (
	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = handlershared.MappedError

var checkoutErrorRules = []mappedHandlerError{
	{Target: service.ErrCartEmpty, Code: response.CodeBadRequest, Key: "error.cart_empty"},
	{Target: service.ErrTooManyItems, Code: response.CodeBadRequest, Key: "error.too_many_items"},
	{Target: service.ErrBuyerContactInvalid, Code: response.CodeBadRequest, Key: "error.buyer_contact_invalid"},
	{Target: service.ErrAddressIncomplete, Code: response.CodeBadRequest, Key: "error.address_incomplete"},
	{Target: service.ErrInvalidOrderItem, Code: response.CodeBadRequest, Key: "error.order_item_invalid"},
	{Target: service.ErrProductNotAvailable, Code: response.CodeBadRequest, Key: "error.product_not_available"},
	{Target: service.ErrPaymentMethodInvalid, Code: response.CodeBadRequest, Key: "error.payment_method_invalid"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.validation_failed"},
	{Target: service.ErrAllocationFailed, Code: response.CodeServiceUnavailable, Key: "error.allocation_failed"},
}

var orderQueryErrorRules = []mappedHandlerError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
}

var settlementErrorRules = handlershared.ConcatMappedErrors(orderQueryErrorRules, []mappedHandlerError{
	{Target: service.ErrOrderNotSettled, Code: response.CodeConflict, Key: "error.order_not_settled"},
	{Target: service.ErrAddressIncomplete, Code: response.CodeBadRequest, Key: "error.address_incomplete"},
})

// 回调拒绝类错误不应让网关重试
var paymentCallbackErrorRules = []mappedHandlerError{
	{Target: service.ErrPaymentSignatureInvalid, Code: response.CodeUnauthorized, Key: "error.payment_signature_invalid"},
	{Target: service.ErrPaymentCallbackUnknownOrder, Code: response.CodeNotFound, Key: "error.payment_unknown_order"},
	{Target: service.ErrPaymentAmountMismatch, Code: response.CodeBadRequest, Key: "error.payment_amount_mismatch"},
	{Target: service.ErrPaymentCallbackMalformed, Code: response.CodeBadRequest, Key: "error.payment_callback_malformed"},
	{Target: service.ErrPaymentCallbackRejected, Code: response.CodeBadRequest, Key: "error.payment_callback_rejected"},
}

func respondCheckoutError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.order_create_failed")
}

func respondOrderQueryError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, orderQueryErrorRules, response.CodeInternal, "error.order_fetch_failed")
}

func respondSettlementError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, settlementErrorRules, response.CodeInternal, "error.compensation_failed")
}
