package repository

import (
	"time"

	"gorm.io/gorm"
)

// SubOrderListFilter 子订单列表过滤条件，零值字段不参与过滤
type SubOrderListFilter struct {
	Page        int
	PageSize    int
	VendorID    uint
	Status      string
	OrderNumber string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

func (f SubOrderListFilter) scope(db *gorm.DB) *gorm.DB {
	if f.VendorID != 0 {
		db = db.Where("vendor_id = ?", f.VendorID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.OrderNumber != "" {
		db = db.Where("order_number = ?", f.OrderNumber)
	}
	return createdBetween(f.CreatedFrom, f.CreatedTo)(db)
}

// paginate 分页 scope；pageSize <= 0 时不分页，页码小于 1 按第 1 页
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page < 1 {
			page = 1
		}
		return db.Limit(pageSize).Offset((page - 1) * pageSize)
	}
}

// createdBetween 创建时间闭区间
func createdBetween(from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}
