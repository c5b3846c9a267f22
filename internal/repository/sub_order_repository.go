package repository

import (
	"context"
	"errors"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
)

// ErrSubOrderExists 子订单 (order_number, vendor_id) 已存在
var ErrSubOrderExists = errors.New("sub order already exists")

// SubOrderRepository 子订单数据访问接口
type SubOrderRepository interface {
	Exists(ctx context.Context, orderNumber string, vendorID uint) (bool, error)
	Create(ctx context.Context, subOrder *models.SubOrder) error
	GetByID(ctx context.Context, id uint) (*models.SubOrder, error)
	ListByOrder(ctx context.Context, orderNumber string) ([]models.SubOrder, error)
	ListByVendor(ctx context.Context, filter SubOrderListFilter) ([]models.SubOrder, int64, error)
	CompareAndUpdateStatus(ctx context.Context, id uint, fromStatus string, updates map[string]interface{}) (bool, error)
}

// GormSubOrderRepository GORM 实现
type GormSubOrderRepository struct {
	db *gorm.DB
}

// NewSubOrderRepository 创建子订单仓库
func NewSubOrderRepository(db *gorm.DB) *GormSubOrderRepository {
	return &GormSubOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSubOrderRepository) WithTx(tx *gorm.DB) *GormSubOrderRepository {
	if tx == nil {
		return r
	}
	return &GormSubOrderRepository{db: tx}
}

// Exists 检查供应商子订单是否已经生成
func (r *GormSubOrderRepository) Exists(ctx context.Context, orderNumber string, vendorID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SubOrder{}).
		Where("order_number = ? AND vendor_id = ?", orderNumber, vendorID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 在独立事务内写入子订单及其商品行；唯一键冲突返回 ErrSubOrderExists
func (r *GormSubOrderRepository) Create(ctx context.Context, subOrder *models.SubOrder) error {
	items := subOrder.Items
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(subOrder).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].SubOrderID = subOrder.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrSubOrderExists
		}
		return err
	}
	subOrder.Items = items
	return nil
}

// GetByID 根据 ID 获取子订单
func (r *GormSubOrderRepository) GetByID(ctx context.Context, id uint) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	if err := r.db.WithContext(ctx).Preload("Items").First(&subOrder, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subOrder, nil
}

// ListByOrder 获取订单下全部子订单
func (r *GormSubOrderRepository) ListByOrder(ctx context.Context, orderNumber string) ([]models.SubOrder, error) {
	var subOrders []models.SubOrder
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("order_number = ?", orderNumber).
		Order("id asc").
		Find(&subOrders).Error; err != nil {
		return nil, err
	}
	return subOrders, nil
}

// ListByVendor 供应商子订单列表
func (r *GormSubOrderRepository) ListByVendor(ctx context.Context, filter SubOrderListFilter) ([]models.SubOrder, int64, error) {
	query := filter.scope(r.db.WithContext(ctx).Model(&models.SubOrder{}))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var subOrders []models.SubOrder
	if err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Preload("Items").
		Order("id desc").
		Find(&subOrders).Error; err != nil {
		return nil, 0, err
	}
	return subOrders, total, nil
}

// CompareAndUpdateStatus 仅当状态仍为 fromStatus 时更新
func (r *GormSubOrderRepository) CompareAndUpdateStatus(ctx context.Context, id uint, fromStatus string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.SubOrder{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
