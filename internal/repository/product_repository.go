package repository

import (
	"context"
	"errors"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
)

// CatalogRepository 商品与供应商只读访问接口
type CatalogRepository interface {
	ListProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error)
	GetVendor(ctx context.Context, id uint) (*models.Vendor, error)
}

// GormCatalogRepository GORM 实现
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建商品目录仓库
func NewCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// ListProductsByIDs 批量读取商品（附带供应商），不过滤上下架，由调用方判断
func (r *GormCatalogRepository) ListProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.WithContext(ctx).Preload("Vendor").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetVendor 根据 ID 获取供应商
func (r *GormCatalogRepository) GetVendor(ctx context.Context, id uint) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}
