package admin

import (
	"github.com/bazaar-next/internal/authz"
	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var orderPatchErrorRules = []handlershared.MappedError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrOrderFieldImmutable, Code: response.CodeBadRequest, Key: "error.order_field_immutable"},
	{Target: service.ErrStatusValueInvalid, Code: response.CodeBadRequest, Key: "error.status_value_invalid"},
	{Target: service.ErrOrderStatusInvalid, Code: response.CodeConflict, Key: "error.order_status_invalid"},
	{Target: service.ErrPaymentTransitionRejected, Code: response.CodeConflict, Key: "error.payment_transition_rejected"},
	{Target: service.ErrValidation, Code: response.CodeBadRequest, Key: "error.validation_failed"},
}

var dispatchErrorRules = []handlershared.MappedError{
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Key: "error.order_not_found"},
	{Target: service.ErrOrderNotSettled, Code: response.CodeConflict, Key: "error.order_not_settled"},
}

var subOrderErrorRules = []handlershared.MappedError{
	{Target: service.ErrSubOrderNotFound, Code: response.CodeNotFound, Key: "error.sub_order_not_found"},
	{Target: service.ErrSubOrderForbidden, Code: response.CodeForbidden, Key: "error.sub_order_forbidden"},
	{Target: service.ErrSubOrderStatusTransition, Code: response.CodeConflict, Key: "error.sub_order_status_transition"},
	{Target: service.ErrStatusValueInvalid, Code: response.CodeBadRequest, Key: "error.status_value_invalid"},
}

var authzErrorRules = []handlershared.MappedError{
	{Target: authz.ErrUnavailable, Code: response.CodeServiceUnavailable, Key: "error.authz_unavailable"},
	{Target: authz.ErrBuiltinPolicy, Code: response.CodeConflict, Key: "error.authz_builtin_policy"},
	{Target: authz.ErrRoleReserved, Code: response.CodeBadRequest, Key: "error.authz_role_reserved"},
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: authz.ErrActionRequired, Code: response.CodeBadRequest, Key: "error.bad_request"},
}
