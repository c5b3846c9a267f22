package models

import (
	"strings"
	"time"
)

// Address 收货地址
type Address struct {
	Street string `gorm:"type:varchar(255)" json:"street"` // 街道
	City   string `gorm:"type:varchar(100)" json:"city"`   // 城市
	State  string `gorm:"type:varchar(100)" json:"state"`  // 省/州
	Zip    string `gorm:"type:varchar(20)" json:"zip"`     // 邮编
}

// Complete 四个字段都非空才算完整地址
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Zip) != ""
}

// Order 订单表（买家视角的整单，子订单按供应商拆分）
type Order struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                       // 主键
	OrderNumber     string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`                  // 展示订单号 ORD######
	OrderToken      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`                      // 买家侧订单标识
	BuyerID         uint       `gorm:"uniqueIndex:idx_orders_buyer_request,priority:1;not null" json:"buyer_id"`   // 买家ID
	ClientRequestID *string    `gorm:"type:varchar(64);uniqueIndex:idx_orders_buyer_request,priority:2" json:"-"` // 客户端幂等键
	BuyerName       string     `gorm:"type:varchar(100);not null" json:"buyer_name"`                               // 买家姓名
	BuyerEmail      string     `gorm:"type:varchar(255);not null" json:"buyer_email"`                              // 买家邮箱
	BuyerPhone      string     `gorm:"type:varchar(32);not null" json:"buyer_phone"`                               // 买家电话
	Shipping        Address    `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`                  // 收货地址
	PaymentMethod   string     `gorm:"type:varchar(20);not null" json:"payment_method"`                            // cod / online
	PaymentStatus   string     `gorm:"type:varchar(20);index;not null" json:"payment_status"`                      // 支付状态
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`                              // 聚合履约状态
	Currency        string     `gorm:"type:varchar(10);not null" json:"currency"`                                  // 币种
	TotalAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`                  // 服务端计算的总额
	GatewaySession  string     `gorm:"type:varchar(64);index" json:"gateway_session_id,omitempty"`                 // 网关会话
	PaidAt          *time.Time `gorm:"index" json:"paid_at"`                                                       // 支付确认时间
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                                    // 创建时间
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                                    // 更新时间

	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`      // 订单项
	SubOrders []SubOrder  `gorm:"foreignKey:OrderID" json:"sub_orders,omitempty"` // 供应商子订单
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
