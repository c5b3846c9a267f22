package models

import "time"

// SubOrder 供应商子订单，(order_number, vendor_id) 唯一
type SubOrder struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	OrderID     uint       `gorm:"index;not null" json:"order_id"`
	OrderNumber string     `gorm:"type:varchar(32);uniqueIndex:idx_sub_orders_order_vendor,priority:1;not null" json:"order_number"`
	VendorID    uint       `gorm:"uniqueIndex:idx_sub_orders_order_vendor,priority:2;index;not null" json:"vendor_id"`
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Currency    string     `gorm:"type:varchar(10);not null" json:"currency"`
	Subtotal    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	BuyerName   string     `gorm:"type:varchar(100)" json:"buyer_name"`
	BuyerPhone  string     `gorm:"type:varchar(32)" json:"buyer_phone"`
	ShipTo      Address    `gorm:"embedded;embeddedPrefix:ship_to_" json:"ship_to"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items []SubOrderItem `gorm:"foreignKey:SubOrderID" json:"items,omitempty"`
}

// TableName 指定表名
func (SubOrder) TableName() string {
	return "sub_orders"
}

// SubOrderItem 子订单商品行（订单项副本）
type SubOrderItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	SubOrderID  uint      `gorm:"index;not null" json:"sub_order_id"`
	OrderItemID uint      `gorm:"index;not null" json:"order_item_id"`
	ProductID   uint      `gorm:"not null" json:"product_id"`
	ProductName string    `gorm:"type:varchar(255);not null" json:"product_name"`
	Variant     JSON      `json:"variant,omitempty"`
	UnitPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	LineTotal   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"line_total"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (SubOrderItem) TableName() string {
	return "sub_order_items"
}
