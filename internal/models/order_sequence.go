package models

import "time"

// OrderSequence 订单号计数器行
type OrderSequence struct {
	Name      string    `gorm:"type:varchar(64);primaryKey" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (OrderSequence) TableName() string {
	return "order_sequences"
}
