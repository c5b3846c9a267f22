package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/metrics"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"
)

const profileCacheTTL = 5 * time.Minute

// ProfileCompensator 结算后把订单与收货地址追加到买家档案。
// 只做插入，(buyer_id, order_number) 唯一，重复调用不产生重复记录。
type ProfileCompensator struct {
	orderRepo   repository.OrderRepository
	profileRepo repository.BuyerProfileRepository
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewProfileCompensator 创建档案补偿服务
func NewProfileCompensator(orderRepo repository.OrderRepository, profileRepo repository.BuyerProfileRepository, m *metrics.Metrics) *ProfileCompensator {
	return &ProfileCompensator{
		orderRepo:   orderRepo,
		profileRepo: profileRepo,
		metrics:     m,
		now:         time.Now,
	}
}

// AppendSettlementResult 追加结果，false 表示该订单此前已记录
type AppendSettlementResult struct {
	OrderAppended   bool `json:"order_appended"`
	AddressAppended bool `json:"address_appended"`
}

// AppendSettlement 追加订单与地址历史；address 为空时使用订单收货地址
func (c *ProfileCompensator) AppendSettlement(ctx context.Context, buyerID uint, identifier string, address *models.Address) (*AppendSettlementResult, error) {
	order, err := resolveOrder(ctx, c.orderRepo, identifier)
	if err != nil {
		return nil, err
	}
	if order == nil || order.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}
	if !isSettled(order) {
		return nil, ErrOrderNotSettled
	}
	shipTo := order.Shipping
	if address != nil && address.Complete() {
		shipTo = *address
	}

	log := logger.For(ctx, "buyer_id", buyerID, "order_number", order.OrderNumber)
	fail := func(step string, err error) (*AppendSettlementResult, error) {
		c.metrics.Compensation("failed")
		log.Errorw("compensation_failed", "step", step, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrCompensationFailed, step, err)
	}

	if err := c.profileRepo.Ensure(ctx, &models.BuyerProfile{
		ID:    buyerID,
		Name:  order.BuyerName,
		Email: order.BuyerEmail,
		Phone: order.BuyerPhone,
	}); err != nil {
		return fail("ensure_profile", err)
	}

	settledAt := c.now()
	if order.PaidAt != nil {
		settledAt = *order.PaidAt
	}
	orderAppended, err := c.profileRepo.AppendOrder(ctx, &models.BuyerOrderHistory{
		BuyerID:       buyerID,
		OrderNumber:   order.OrderNumber,
		OrderToken:    order.OrderToken,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Currency:      order.Currency,
		TotalAmount:   order.TotalAmount,
		Snapshot:      orderSnapshot(order),
		SettledAt:     &settledAt,
	})
	if err != nil {
		return fail("append_order", err)
	}
	addressAppended, err := c.profileRepo.AppendAddress(ctx, &models.BuyerAddressHistory{
		BuyerID:     buyerID,
		OrderNumber: order.OrderNumber,
		Address:     shipTo,
	})
	if err != nil {
		return fail("append_address", err)
	}

	result := &AppendSettlementResult{OrderAppended: orderAppended, AddressAppended: addressAppended}
	if orderAppended || addressAppended {
		if err := cache.Del(ctx, cache.BuyerProfileKey(buyerID)); err != nil {
			log.Warnw("buyer_profile_cache_evict_failed", "error", err)
		}
		c.metrics.Compensation("appended")
	} else {
		c.metrics.Compensation("duplicate")
	}
	log.Infow("compensation_appended", "order_appended", orderAppended, "address_appended", addressAppended)
	return result, nil
}

// GetProfile 读取买家档案，历史按最新在前；Redis 可用时短暂缓存
func (c *ProfileCompensator) GetProfile(ctx context.Context, buyerID uint) (*models.BuyerProfile, error) {
	key := cache.BuyerProfileKey(buyerID)
	var cached models.BuyerProfile
	if hit, err := cache.GetJSON(ctx, key, &cached); err != nil {
		logger.For(ctx).Debugw("buyer_profile_cache_read_failed", "buyer_id", buyerID, "error", err)
	} else if hit {
		return &cached, nil
	}

	profile, err := c.profileRepo.Get(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if profile == nil {
		return &models.BuyerProfile{
			ID:             buyerID,
			OrderHistory:   []models.BuyerOrderHistory{},
			AddressHistory: []models.BuyerAddressHistory{},
		}, nil
	}
	if err := cache.SetJSON(ctx, key, profile, profileCacheTTL); err != nil {
		logger.For(ctx).Debugw("buyer_profile_cache_write_failed", "buyer_id", buyerID, "error", err)
	}
	return profile, nil
}

func orderSnapshot(order *models.Order) models.JSON {
	items := make([]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"product_id":   item.ProductID,
			"vendor_id":    item.VendorID,
			"product_name": item.ProductName,
			"unit_price":   item.UnitPrice.String(),
			"quantity":     item.Quantity,
			"line_total":   item.LineTotal.String(),
		})
	}
	return models.JSON{
		"order_number":   order.OrderNumber,
		"order_id":       order.OrderToken,
		"total_amount":   order.TotalAmount.String(),
		"currency":       order.Currency,
		"payment_method": order.PaymentMethod,
		"items":          items,
	}
}
