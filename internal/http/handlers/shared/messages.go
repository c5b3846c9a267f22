package shared

// 错误消息表，key 与处理器中的错误映射规则一一对应
var messages = map[string]string{
	"error.bad_request":                  "invalid request",
	"error.unauthorized":                 "unauthorized",
	"error.forbidden":                    "forbidden",
	"error.too_many_requests":            "too many requests, please retry later",
	"error.user_id_invalid":              "invalid buyer id",
	"error.user_id_type_invalid":         "buyer id has unexpected type",
	"error.staff_id_invalid":             "invalid staff id",
	"error.staff_id_type_invalid":        "staff id has unexpected type",
	"error.vendor_id_invalid":            "invalid vendor id",
	"error.validation_failed":            "validation failed",
	"error.cart_empty":                   "cart is empty",
	"error.too_many_items":               "too many items in cart",
	"error.buyer_contact_invalid":        "buyer name, email and phone are required",
	"error.address_incomplete":           "street, city, state and zip are required",
	"error.order_item_invalid":           "invalid order item",
	"error.product_not_available":        "product not available",
	"error.payment_method_invalid":       "payment method must be cod or online",
	"error.order_field_immutable":        "order field cannot be modified",
	"error.order_status_invalid":         "order status transition not allowed",
	"error.status_value_invalid":         "status value invalid",
	"error.allocation_failed":            "could not allocate an order number, please retry",
	"error.order_not_found":              "order not found",
	"error.order_fetch_failed":           "failed to load order",
	"error.order_create_failed":          "failed to create order",
	"error.order_update_failed":          "failed to update order",
	"error.order_not_settled":            "order payment is not settled",
	"error.payment_transition_rejected":  "payment status transition rejected",
	"error.payment_signature_invalid":    "callback signature invalid",
	"error.payment_unknown_order":        "callback references an unknown order",
	"error.payment_amount_mismatch":      "callback amount does not match the order",
	"error.payment_callback_malformed":   "callback payload malformed",
	"error.payment_callback_rejected":    "callback rejected",
	"error.payment_callback_failed":      "failed to process callback",
	"error.dispatch_failed":              "vendor dispatch incomplete, retry to resume",
	"error.compensation_failed":          "profile update failed, retry to resume",
	"error.profile_fetch_failed":         "failed to load profile",
	"error.sub_order_not_found":          "sub order not found",
	"error.sub_order_status_transition":  "sub order status transition not allowed",
	"error.sub_order_forbidden":          "sub order belongs to another vendor",
	"error.sub_order_fetch_failed":       "failed to load sub orders",
	"error.sub_order_update_failed":      "failed to update sub order",
	"error.authz_unavailable":            "authorization unavailable",
	"error.role_policies_fetch_failed":   "failed to load role policies",
	"error.authz_builtin_policy":         "builtin policies cannot be revoked",
	"error.authz_role_reserved":          "role name is reserved",
	"error.internal":                     "internal error",
}

// Message 返回错误 key 对应的提示，未登记的 key 原样返回
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
