package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testGatewaySecret = "gateway-test-secret"

type serviceTestEnv struct {
	db           *gorm.DB
	orderRepo    *repository.GormOrderRepository
	subOrderRepo *repository.GormSubOrderRepository
	profileRepo  *repository.GormBuyerProfileRepository
	orders       *OrderService
	dispatcher   *FanoutDispatcher
	trigger      *recordingTrigger
	reconciler   *PaymentReconciler
	checkout     *CheckoutService
	subOrders    *SubOrderService
	compensator  *ProfileCompensator

	vendorA, vendorB, vendorPending models.Vendor
	productA, productA2, productB   models.Product
	productInactive, productPending models.Product
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 内存库共享缓存下并发写会触发表锁，测试统一串行化连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	db := setupServiceTestDB(t)
	env := &serviceTestEnv{
		db:           db,
		orderRepo:    repository.NewOrderRepository(db),
		subOrderRepo: repository.NewSubOrderRepository(db),
		profileRepo:  repository.NewBuyerProfileRepository(db),
	}
	allocator := NewCounterAllocator(repository.NewSequenceRepository(db), env.orderRepo)
	env.orders = NewOrderService(env.orderRepo, repository.NewCatalogRepository(db), allocator, nil, "INR", 0)
	env.dispatcher = NewFanoutDispatcher(env.orderRepo, env.subOrderRepo, nil)
	env.trigger = &recordingTrigger{}
	env.reconciler = NewPaymentReconciler(env.orderRepo, env.trigger, GatewaySettings{
		CheckoutBaseURL: "https://pay.test/checkout",
		CallbackURL:     "https://api.test/api/v1/payments/callback",
		CallbackSecret:  testGatewaySecret,
	}, nil)
	env.orders.WithDispatchTrigger(env.trigger)
	env.checkout = NewCheckoutService(env.orders, env.reconciler)
	env.subOrders = NewSubOrderService(env.orderRepo, env.subOrderRepo)
	env.compensator = NewProfileCompensator(env.orderRepo, env.profileRepo, nil)
	env.seedCatalog(t)
	return env
}

func (env *serviceTestEnv) seedCatalog(t *testing.T) {
	t.Helper()
	env.vendorA = models.Vendor{BusinessName: "Vendor A", OwnerEmail: "a@vendor.test", IsApproved: true}
	env.vendorB = models.Vendor{BusinessName: "Vendor B", OwnerEmail: "b@vendor.test", IsApproved: true}
	env.vendorPending = models.Vendor{BusinessName: "Vendor Pending", OwnerEmail: "p@vendor.test", IsApproved: false}
	for _, vendor := range []*models.Vendor{&env.vendorA, &env.vendorB, &env.vendorPending} {
		if err := env.db.Create(vendor).Error; err != nil {
			t.Fatalf("create vendor failed: %v", err)
		}
	}
	env.productA = models.Product{VendorID: env.vendorA.ID, Name: "Brass Lamp", Price: models.MustMoney("100"), IsActive: true}
	env.productA2 = models.Product{VendorID: env.vendorA.ID, Name: "Cotton Rug", Price: models.MustMoney("30.50"), IsActive: true}
	env.productB = models.Product{VendorID: env.vendorB.ID, Name: "Tea Tin", Price: models.MustMoney("50"), IsActive: true}
	env.productInactive = models.Product{VendorID: env.vendorA.ID, Name: "Retired", Price: models.MustMoney("10"), IsActive: true}
	env.productPending = models.Product{VendorID: env.vendorPending.ID, Name: "Unlisted", Price: models.MustMoney("10"), IsActive: true}
	for _, product := range []*models.Product{&env.productA, &env.productA2, &env.productB, &env.productInactive, &env.productPending} {
		if err := env.db.Create(product).Error; err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}
	// gorm 对零值 bool 使用默认值，下架需单独更新
	if err := env.db.Model(&env.productInactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}
}

func (env *serviceTestEnv) orderInput(buyerID uint, method string, items ...CheckoutItem) CreateOrderInput {
	return CreateOrderInput{
		BuyerID: buyerID,
		Buyer: BuyerContact{
			Name:  "Asha Rao",
			Email: "asha@example.com",
			Phone: "+91 98450 12345",
		},
		Shipping: models.Address{
			Street: "12 MG Road",
			City:   "Bengaluru",
			State:  "KA",
			Zip:    "560001",
		},
		PaymentMethod: method,
		Items:         items,
	}
}

// twoVendorCart 供应商 A 两件商品 + 供应商 B 一件
func (env *serviceTestEnv) twoVendorCart() []CheckoutItem {
	return []CheckoutItem{
		{ProductID: env.productA.ID, Quantity: 2},
		{ProductID: env.productB.ID, Quantity: 1},
		{ProductID: env.productA2.ID, Quantity: 1, Variant: models.JSON{"size": "L"}},
	}
}

func (env *serviceTestEnv) mustCheckout(t *testing.T, buyerID uint, method string, items ...CheckoutItem) *CheckoutResult {
	t.Helper()
	result, err := env.checkout.Checkout(context.Background(), env.orderInput(buyerID, method, items...))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return result
}

func (env *serviceTestEnv) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := env.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

type recordingTrigger struct {
	mu         sync.Mutex
	calls      []string
	dispatcher *FanoutDispatcher
}

func (r *recordingTrigger) TriggerDispatch(ctx context.Context, order *models.Order, reason string) error {
	r.mu.Lock()
	r.calls = append(r.calls, order.OrderNumber+":"+reason)
	r.mu.Unlock()
	if r.dispatcher != nil {
		_, err := r.dispatcher.Dispatch(ctx, order)
		return err
	}
	return nil
}

func (r *recordingTrigger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func settledStatusFor(method string) string {
	if method == constants.PaymentMethodCOD {
		return constants.PaymentStatusPending
	}
	return constants.PaymentStatusConfirmed
}
