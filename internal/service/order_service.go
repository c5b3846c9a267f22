package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/metrics"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/google/uuid"
)

const (
	maxOrderNumberAttempts = 3
	defaultMaxOrderItems   = 100
	maxClientRequestIDLen  = 64
)

// OrderService 订单服务
type OrderService struct {
	orderRepo   repository.OrderRepository
	catalogRepo repository.CatalogRepository
	allocator   OrderNumberAllocator
	metrics     *metrics.Metrics
	currency    string
	maxItems    int
	trigger     DispatchTrigger
	now         func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, catalogRepo repository.CatalogRepository, allocator OrderNumberAllocator, m *metrics.Metrics, currency string, maxItems int) *OrderService {
	if strings.TrimSpace(currency) == "" {
		currency = "INR"
	}
	if maxItems <= 0 {
		maxItems = defaultMaxOrderItems
	}
	return &OrderService{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		allocator:   allocator,
		metrics:     m,
		currency:    strings.ToUpper(strings.TrimSpace(currency)),
		maxItems:    maxItems,
		now:         time.Now,
	}
}

// BuyerContact 买家联系方式
type BuyerContact struct {
	Name  string
	Email string
	Phone string
}

// CheckoutItem 购物车行。客户端提交的单价与总额一律忽略，以商品表为准。
type CheckoutItem struct {
	ProductID uint
	VendorID  uint // 可选，填写时必须与商品所属供应商一致
	Quantity  int
	Variant   models.JSON
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	BuyerID         uint
	ClientRequestID string
	Buyer           BuyerContact
	Shipping        models.Address
	PaymentMethod   string
	Items           []CheckoutItem
}

// CreateOrderResult 创建结果，Replayed 表示命中了客户端幂等键
type CreateOrderResult struct {
	Order    *models.Order
	Replayed bool
}

// CreateOrder 校验购物车、按商品价格计算总额并一次性写入订单
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	log := logger.For(ctx, "buyer_id", input.BuyerID)
	normalized, err := s.normalizeCreateInput(input)
	if err != nil {
		s.metrics.Checkout("invalid")
		return nil, err
	}

	if normalized.ClientRequestID != "" {
		existing, err := s.orderRepo.GetByClientRequest(ctx, normalized.BuyerID, normalized.ClientRequestID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
		}
		if existing != nil {
			log.Infow("order_create_replayed", "order_number", existing.OrderNumber, "client_request_id", normalized.ClientRequestID)
			s.metrics.Checkout("replayed")
			return &CreateOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	items, total, err := s.priceItems(ctx, normalized.Items)
	if err != nil {
		s.metrics.Checkout("invalid")
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		orderNumber, err := s.allocator.NextOrderNumber(ctx)
		if err != nil {
			log.Errorw("order_number_allocation_failed", "strategy", s.allocator.Strategy(), "error", err)
			s.metrics.AllocationFailed(s.allocator.Strategy())
			s.metrics.Checkout("allocation_failed")
			if isAllocationError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}

		order := s.buildOrder(normalized, orderNumber, total)
		rows := cloneOrderItems(items)
		err = s.orderRepo.Transaction(ctx, func(repo repository.OrderRepository) error {
			return repo.Create(ctx, order, rows)
		})
		if err == nil {
			log.Infow("order_created",
				"order_number", order.OrderNumber,
				"order_id", order.OrderToken,
				"payment_method", order.PaymentMethod,
				"total_amount", order.TotalAmount.String(),
				"items", len(rows),
				"attempt", attempt,
			)
			s.metrics.Checkout("created")
			return &CreateOrderResult{Order: order}, nil
		}
		if !repository.IsUniqueViolation(err) {
			s.metrics.Checkout("failed")
			return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
		}

		// 冲突可能来自并发的同一幂等键，也可能是订单号撞车
		if normalized.ClientRequestID != "" {
			existing, fetchErr := s.orderRepo.GetByClientRequest(ctx, normalized.BuyerID, normalized.ClientRequestID)
			if fetchErr == nil && existing != nil {
				s.metrics.Checkout("replayed")
				return &CreateOrderResult{Order: existing, Replayed: true}, nil
			}
		}
		log.Warnw("order_number_conflict_retry", "order_number", orderNumber, "attempt", attempt)
		lastErr = err
	}
	s.metrics.Checkout("allocation_failed")
	return nil, fmt.Errorf("%w: order number conflict after %d attempts: %v", ErrAllocationFailed, maxOrderNumberAttempts, lastErr)
}

func (s *OrderService) normalizeCreateInput(input CreateOrderInput) (CreateOrderInput, error) {
	out := input
	if input.BuyerID == 0 {
		return out, ErrBuyerContactInvalid
	}
	out.ClientRequestID = strings.TrimSpace(input.ClientRequestID)
	if len(out.ClientRequestID) > maxClientRequestIDLen {
		return out, fmt.Errorf("%w: client request id too long", ErrValidation)
	}
	out.Buyer = BuyerContact{
		Name:  strings.TrimSpace(input.Buyer.Name),
		Email: strings.TrimSpace(input.Buyer.Email),
		Phone: strings.TrimSpace(input.Buyer.Phone),
	}
	if out.Buyer.Name == "" || out.Buyer.Email == "" || out.Buyer.Phone == "" {
		return out, ErrBuyerContactInvalid
	}
	if _, err := mail.ParseAddress(out.Buyer.Email); err != nil {
		return out, ErrBuyerContactInvalid
	}
	if !validPhone(out.Buyer.Phone) {
		return out, ErrBuyerContactInvalid
	}
	out.Shipping = models.Address{
		Street: strings.TrimSpace(input.Shipping.Street),
		City:   strings.TrimSpace(input.Shipping.City),
		State:  strings.TrimSpace(input.Shipping.State),
		Zip:    strings.TrimSpace(input.Shipping.Zip),
	}
	if !out.Shipping.Complete() {
		return out, ErrAddressIncomplete
	}
	out.PaymentMethod = strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if out.PaymentMethod != constants.PaymentMethodCOD && out.PaymentMethod != constants.PaymentMethodOnline {
		return out, ErrPaymentMethodInvalid
	}
	if len(input.Items) == 0 {
		return out, ErrCartEmpty
	}
	if len(input.Items) > s.maxItems {
		return out, ErrTooManyItems
	}
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return out, ErrInvalidOrderItem
		}
	}
	return out, nil
}

// validPhone 允许 + - 空格 括号分隔，数字位数 7~15
func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// priceItems 以商品表价格生成订单项并累加总额
func (s *OrderService) priceItems(ctx context.Context, cart []CheckoutItem) ([]models.OrderItem, models.Money, error) {
	ids := make([]uint, 0, len(cart))
	seen := make(map[uint]struct{}, len(cart))
	for _, item := range cart {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalogRepo.ListProductsByIDs(ctx, ids)
	if err != nil {
		return nil, models.Money{}, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	byID := make(map[uint]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	total := models.Money{}
	items := make([]models.OrderItem, 0, len(cart))
	for _, item := range cart {
		product, ok := byID[item.ProductID]
		if !ok || !product.IsActive || product.Vendor == nil || !product.Vendor.IsApproved {
			return nil, models.Money{}, ErrProductNotAvailable
		}
		if item.VendorID != 0 && item.VendorID != product.VendorID {
			return nil, models.Money{}, ErrInvalidOrderItem
		}
		lineTotal := product.Price.Times(item.Quantity)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			Variant:     item.Variant,
			UnitPrice:   product.Price,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
		})
		total = total.Plus(lineTotal)
	}
	return items, total, nil
}

func (s *OrderService) buildOrder(input CreateOrderInput, orderNumber string, total models.Money) *models.Order {
	var clientRequestID *string
	if input.ClientRequestID != "" {
		value := input.ClientRequestID
		clientRequestID = &value
	}
	return &models.Order{
		OrderNumber:     orderNumber,
		OrderToken:      uuid.NewString(),
		BuyerID:         input.BuyerID,
		ClientRequestID: clientRequestID,
		BuyerName:       input.Buyer.Name,
		BuyerEmail:      input.Buyer.Email,
		BuyerPhone:      input.Buyer.Phone,
		Shipping:        input.Shipping,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   constants.PaymentStatusCreated,
		Status:          constants.OrderStatusProcessing,
		Currency:        s.currency,
		TotalAmount:     total,
	}
}

func cloneOrderItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	return out
}

// GetOrder 按订单号、买家侧标识或主键查询
func (s *OrderService) GetOrder(ctx context.Context, identifier string) (*models.Order, error) {
	order, err := resolveOrder(ctx, s.orderRepo, identifier)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetBuyerOrder 查询买家自己的订单，非本人订单视为不存在
func (s *OrderService) GetBuyerOrder(ctx context.Context, buyerID uint, identifier string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListBuyerOrders 买家订单列表
func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID uint, page, pageSize int) ([]models.Order, int64, error) {
	orders, total, err := s.orderRepo.ListByBuyer(ctx, buyerID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return orders, total, nil
}

func resolveOrder(ctx context.Context, repo repository.OrderRepository, identifier string) (*models.Order, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrOrderNotFound
	}
	var (
		order *models.Order
		err   error
	)
	switch {
	case strings.HasPrefix(identifier, orderNumberPrefix):
		order, err = repo.GetByOrderNumber(ctx, identifier)
	default:
		if id, parseErr := strconv.ParseUint(identifier, 10, 64); parseErr == nil {
			order, err = repo.GetByID(ctx, uint(id))
		} else {
			order, err = repo.GetByToken(ctx, identifier)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	return order, nil
}

// WithDispatchTrigger 运营补丁把订单推进到已结算时，通过 trigger 发起拆单
func (s *OrderService) WithDispatchTrigger(trigger DispatchTrigger) *OrderService {
	s.trigger = trigger
	return s
}

// 订单创建后唯一允许修改的字段
var mutableOrderFields = map[string]bool{
	"payment_status": true,
	"status":         true,
	"paid_at":        true,
}

// UpdateStatus 按补丁更新支付状态、聚合状态或支付时间，其它字段一律拒绝
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, patch map[string]interface{}) (*models.Order, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrValidation)
	}
	for key := range patch {
		if !mutableOrderFields[key] {
			return nil, fmt.Errorf("%w: %s", ErrOrderFieldImmutable, key)
		}
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	updates := map[string]interface{}{"updated_at": s.now()}
	if raw, ok := patch["payment_status"]; ok {
		target, ok := raw.(string)
		if !ok || !isPaymentStatus(target) {
			return nil, ErrStatusValueInvalid
		}
		if target != order.PaymentStatus && !canTransitPayment(order.PaymentMethod, order.PaymentStatus, target) {
			return nil, ErrPaymentTransitionRejected
		}
		updates["payment_status"] = target
	}
	if raw, ok := patch["status"]; ok {
		target, ok := raw.(string)
		if !ok || !isOrderStatus(target) {
			return nil, ErrStatusValueInvalid
		}
		if target != order.Status && !allowedOrderTransitions[order.Status][target] {
			return nil, ErrOrderStatusInvalid
		}
		updates["status"] = target
	}
	if raw, ok := patch["paid_at"]; ok {
		paidAt, err := parsePatchTime(raw)
		if err != nil {
			return nil, ErrStatusValueInvalid
		}
		updates["paid_at"] = paidAt
	}

	var settledAs *models.Order
	if target, ok := updates["payment_status"].(string); ok && target != order.PaymentStatus {
		if target == constants.PaymentStatusConfirmed && updates["paid_at"] == nil {
			updates["paid_at"] = updates["updated_at"]
		}
		after := *order
		after.PaymentStatus = target
		if isSettled(&after) && !isSettled(order) {
			settledAs = &after
		}

		// 支付状态走条件更新，避免与回调并发时覆盖
		applied, err := s.orderRepo.CompareAndUpdatePayment(ctx, order.ID, order.PaymentStatus, updates)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
		}
		if !applied {
			return nil, ErrPaymentTransitionRejected
		}
	} else if err := s.orderRepo.Update(ctx, order.ID, updates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderUpdateFailed, err)
	}
	log := logger.For(ctx, "order_number", order.OrderNumber)
	log.Infow("order_status_patched", "fields", patchKeys(patch))

	fresh, err := s.GetOrder(ctx, strconv.FormatUint(uint64(order.ID), 10))
	if settledAs != nil && s.trigger != nil {
		if fresh != nil {
			settledAs = fresh
		}
		if triggerErr := s.trigger.TriggerDispatch(ctx, settledAs, "operator_patch"); triggerErr != nil {
			log.Errorw("fanout_trigger_failed", "reason", "operator_patch", "error", triggerErr)
		}
	}
	return fresh, err
}

func parsePatchTime(raw interface{}) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		return &parsed, nil
	default:
		return nil, errors.New("unsupported time value")
	}
}

func patchKeys(patch map[string]interface{}) []string {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	return keys
}
