package repository

import (
	"context"
	"errors"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuyerProfileRepository 买家档案数据访问接口
type BuyerProfileRepository interface {
	Ensure(ctx context.Context, profile *models.BuyerProfile) error
	AppendOrder(ctx context.Context, entry *models.BuyerOrderHistory) (bool, error)
	AppendAddress(ctx context.Context, entry *models.BuyerAddressHistory) (bool, error)
	Get(ctx context.Context, buyerID uint) (*models.BuyerProfile, error)
}

// GormBuyerProfileRepository GORM 实现
type GormBuyerProfileRepository struct {
	db *gorm.DB
}

// NewBuyerProfileRepository 创建买家档案仓库
func NewBuyerProfileRepository(db *gorm.DB) *GormBuyerProfileRepository {
	return &GormBuyerProfileRepository{db: db}
}

// Ensure 档案不存在时创建，存在时不覆盖
func (r *GormBuyerProfileRepository) Ensure(ctx context.Context, profile *models.BuyerProfile) error {
	return r.db.WithContext(ctx).
		Omit("OrderHistory", "AddressHistory").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(profile).Error
}

// AppendOrder 追加订单历史，已存在同一订单时返回 false
func (r *GormBuyerProfileRepository) AppendOrder(ctx context.Context, entry *models.BuyerOrderHistory) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AppendAddress 追加地址历史，已存在同一订单时返回 false
func (r *GormBuyerProfileRepository) AppendAddress(ctx context.Context, entry *models.BuyerAddressHistory) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		if IsUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Get 读取档案，历史按时间倒序（最新在前）
func (r *GormBuyerProfileRepository) Get(ctx context.Context, buyerID uint) (*models.BuyerProfile, error) {
	var profile models.BuyerProfile
	err := r.db.WithContext(ctx).
		Preload("OrderHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id desc") }).
		Preload("AddressHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id desc") }).
		First(&profile, buyerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
