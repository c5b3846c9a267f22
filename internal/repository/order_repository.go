package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByToken(ctx context.Context, token string) (*models.Order, error)
	GetByGatewaySession(ctx context.Context, sessionID string) (*models.Order, error)
	GetByClientRequest(ctx context.Context, buyerID uint, clientRequestID string) (*models.Order, error)
	LatestOrderNumber(ctx context.Context) (string, error)
	ListByBuyer(ctx context.Context, buyerID uint, page, pageSize int) ([]models.Order, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	CompareAndUpdatePayment(ctx context.Context, id uint, fromStatus string, updates map[string]interface{}) (bool, error)
	ListPendingDispatch(ctx context.Context, settledBefore time.Time, limit int) ([]models.Order, error)
	Transaction(ctx context.Context, fn func(repo OrderRepository) error) error
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Transaction 在单个事务内执行
func (r *GormOrderRepository) Transaction(ctx context.Context, fn func(repo OrderRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *GormOrderRepository) withDetail(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("SubOrders.Items")
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Items", "SubOrders").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *GormOrderRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(ctx).Where(query, args...).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(ctx, "id = ?", id)
}

// GetByOrderNumber 根据展示订单号获取订单
func (r *GormOrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

// GetByToken 根据买家侧订单标识获取订单
func (r *GormOrderRepository) GetByToken(ctx context.Context, token string) (*models.Order, error) {
	return r.first(ctx, "order_token = ?", token)
}

// GetByGatewaySession 根据网关会话获取订单
func (r *GormOrderRepository) GetByGatewaySession(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, nil
	}
	return r.first(ctx, "gateway_session = ?", sessionID)
}

// GetByClientRequest 按买家 + 客户端幂等键查询
func (r *GormOrderRepository) GetByClientRequest(ctx context.Context, buyerID uint, clientRequestID string) (*models.Order, error) {
	if clientRequestID == "" {
		return nil, nil
	}
	return r.first(ctx, "buyer_id = ? AND client_request_id = ?", buyerID, clientRequestID)
}

// LatestOrderNumber 读取最新创建订单的订单号，无订单时返回空串
func (r *GormOrderRepository) LatestOrderNumber(ctx context.Context) (string, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Select("id", "order_number", "created_at").
		Order("created_at desc").
		Order("id desc").
		Limit(1).
		Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return order.OrderNumber, nil
}

// ListByBuyer 买家订单列表
func (r *GormOrderRepository) ListByBuyer(ctx context.Context, buyerID uint, page, pageSize int) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("buyer_id = ?", buyerID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	if err := query.Scopes(paginate(page, pageSize)).Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// Update 更新订单可变字段（字段白名单由 service 层保证）
func (r *GormOrderRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

// CompareAndUpdatePayment 仅当支付状态仍为 fromStatus 时更新，返回是否命中
func (r *GormOrderRepository) CompareAndUpdatePayment(ctx context.Context, id uint, fromStatus string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListPendingDispatch 已结算但子订单数少于供应商数的订单，按 id 升序
func (r *GormOrderRepository) ListPendingDispatch(ctx context.Context, settledBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := r.withDetail(ctx).
		Where("(payment_status = ? OR (payment_method = ? AND payment_status = ?))",
			constants.PaymentStatusConfirmed, constants.PaymentMethodCOD, constants.PaymentStatusPending).
		Where("updated_at <= ?", settledBefore).
		Where("(SELECT COUNT(DISTINCT oi.vendor_id) FROM order_items oi WHERE oi.order_id = orders.id) > " +
			"(SELECT COUNT(*) FROM sub_orders so WHERE so.order_number = orders.order_number)").
		Order("id asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
