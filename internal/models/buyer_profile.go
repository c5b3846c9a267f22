package models

import "time"

// BuyerProfile 买家档案，ID 与认证服务的用户 ID 一致
type BuyerProfile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"type:varchar(100)" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderHistory   []BuyerOrderHistory   `gorm:"foreignKey:BuyerID" json:"order_history"`
	AddressHistory []BuyerAddressHistory `gorm:"foreignKey:BuyerID" json:"address_history"`
}

// TableName 指定表名
func (BuyerProfile) TableName() string {
	return "buyer_profiles"
}

// BuyerOrderHistory 买家订单历史（只追加），同一订单只记一次
type BuyerOrderHistory struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	BuyerID       uint       `gorm:"uniqueIndex:idx_buyer_order_history,priority:1;not null" json:"buyer_id"`
	OrderNumber   string     `gorm:"type:varchar(32);uniqueIndex:idx_buyer_order_history,priority:2;not null" json:"order_number"`
	OrderToken    string     `gorm:"type:varchar(64);not null" json:"order_id"`
	PaymentMethod string     `gorm:"type:varchar(20)" json:"payment_method"`
	PaymentStatus string     `gorm:"type:varchar(20)" json:"payment_status"`
	Currency      string     `gorm:"type:varchar(10)" json:"currency"`
	TotalAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`
	Snapshot      JSON       `json:"snapshot"`
	SettledAt     *time.Time `json:"settled_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (BuyerOrderHistory) TableName() string {
	return "buyer_order_histories"
}

// BuyerAddressHistory 买家地址历史（只追加），按订单去重
type BuyerAddressHistory struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	BuyerID     uint      `gorm:"uniqueIndex:idx_buyer_address_history,priority:1;not null" json:"buyer_id"`
	OrderNumber string    `gorm:"type:varchar(32);uniqueIndex:idx_buyer_address_history,priority:2;not null" json:"order_number"`
	Address     Address   `gorm:"embedded" json:"address"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (BuyerAddressHistory) TableName() string {
	return "buyer_address_histories"
}
