package models

import "time"

// Vendor 供应商（商家），由入驻流程维护，本服务只读
type Vendor struct {
	ID           uint      `gorm:"primarykey" json:"id"`                             // 主键
	BusinessName string    `gorm:"type:varchar(255);not null" json:"business_name"`  // 店铺名称
	OwnerName    string    `gorm:"type:varchar(100)" json:"owner_name"`              // 负责人
	OwnerEmail   string    `gorm:"type:varchar(255);index" json:"owner_email"`       // 负责人邮箱
	IsApproved   bool      `gorm:"default:false;index" json:"is_approved"`           // 是否审核通过
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt    time.Time `json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Vendor) TableName() string {
	return "vendors"
}

// Product 商品表，下单时的权威价格来源
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                 // 主键
	VendorID  uint      `gorm:"index;not null" json:"vendor_id"`                      // 供应商ID
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`               // 商品名称
	Price     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"`   // 单价
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`                  // 是否上架
	CreatedAt time.Time `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                           // 更新时间

	Vendor *Vendor `gorm:"foreignKey:VendorID" json:"vendor,omitempty"` // 供应商
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
