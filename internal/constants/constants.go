package constants

// 订单聚合状态常量
const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// 支付状态常量
const (
	PaymentStatusCreated    = "created"
	PaymentStatusPending    = "pending" // 货到付款，待收款
	PaymentStatusUnpaid     = "unpaid"  // 等待网关回调
	PaymentStatusConfirmed  = "confirmed"
	PaymentStatusFailed     = "failed"
	PaymentStatusProcessing = "processing"
)

// 支付方式常量
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

// 子订单（供应商履约）状态常量
const (
	SubOrderStatusPending    = "Pending"
	SubOrderStatusProcessing = "Processing"
	SubOrderStatusShipped    = "Shipped"
	SubOrderStatusDelivered  = "Delivered"
	SubOrderStatusCancelled  = "Cancelled"
)

// 分单结果常量
const (
	DispatchOutcomeSent        = "sent"
	DispatchOutcomeAlreadySent = "already_sent"
	DispatchOutcomeError       = "error"
)

// 网关回调结果常量
const (
	GatewayOutcomeSuccess = "success"
	GatewayOutcomeFailure = "failure"
)

// 后台角色常量
const (
	StaffRoleOperator = "operator"
	StaffRoleVendor   = "vendor"
)

// 队列与任务常量
const (
	QueueDefault       = "default"
	QueueCritical      = "critical"
	TaskFanoutDispatch = "order:fanout_dispatch"
)
