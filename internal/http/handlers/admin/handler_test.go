package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/provider"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type adminTestEnv struct {
	container *provider.Container
	router    *gin.Engine
	vendorA   models.Vendor
	vendorB   models.Vendor
	order     *models.Order
}

func newAdminTestEnv(t *testing.T) *adminTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{
		Order:   config.OrderConfig{SequenceStrategy: config.SequenceStrategyDB, Currency: "INR"},
		Gateway: config.GatewayConfig{CallbackSecret: "admin-test-secret"},
	}
	env := &adminTestEnv{container: provider.Build(cfg, db, nil)}

	env.vendorA = models.Vendor{BusinessName: "Vendor A", OwnerEmail: "a@vendor.test", IsApproved: true}
	env.vendorB = models.Vendor{BusinessName: "Vendor B", OwnerEmail: "b@vendor.test", IsApproved: true}
	for _, v := range []*models.Vendor{&env.vendorA, &env.vendorB} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("create vendor failed: %v", err)
		}
	}
	lamp := models.Product{VendorID: env.vendorA.ID, Name: "Brass Lamp", Price: models.MustMoney("100"), IsActive: true}
	tea := models.Product{VendorID: env.vendorB.ID, Name: "Tea Tin", Price: models.MustMoney("50"), IsActive: true}
	for _, p := range []*models.Product{&lamp, &tea} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}

	// 货到付款下单即触发分单，两个供应商各得一个子订单
	result, err := env.container.CheckoutService.Checkout(context.Background(), service.CreateOrderInput{
		BuyerID:       5,
		Buyer:         service.BuyerContact{Name: "Asha Rao", Email: "asha@example.com", Phone: "+91 98450 12345"},
		Shipping:      models.Address{Street: "12 MG Road", City: "Bengaluru", State: "KA", Zip: "560001"},
		PaymentMethod: constants.PaymentMethodCOD,
		Items: []service.CheckoutItem{
			{ProductID: lamp.ID, Quantity: 1},
			{ProductID: tea.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	env.order = result.Order

	h := New(env.container)
	asStaff := func(c *gin.Context) {
		var vendorID uint
		_, _ = fmt.Sscan(c.GetHeader("X-Test-Vendor"), &vendorID)
		role := constants.StaffRoleOperator
		if vendorID > 0 {
			role = constants.StaffRoleVendor
		}
		c.Set("staff_actor", service.StaffActor{Subject: "staff:1", Role: role, VendorID: vendorID})
		c.Next()
	}
	r := gin.New()
	staff := r.Group("", asStaff)
	staff.GET("/vendor/sub-orders", h.ListSubOrders)
	staff.GET("/vendor/sub-orders/:id", h.GetSubOrder)
	staff.PATCH("/vendor/sub-orders/:id/status", h.UpdateSubOrderStatus)
	staff.GET("/admin/orders/:id", h.AdminGetOrder)
	staff.PATCH("/admin/orders/:id", h.AdminUpdateOrderStatus)
	staff.POST("/admin/orders/:id/dispatch", h.AdminDispatchOrder)
	staff.GET("/admin/authz/me", h.GetAuthzMe)
	staff.GET("/admin/authz/roles", h.ListAuthzRoles)
	staff.POST("/admin/authz/policies", h.GrantAuthzPolicy)
	staff.DELETE("/admin/authz/policies", h.RevokeAuthzPolicy)
	env.router = r
	return env
}

func (env *adminTestEnv) do(t *testing.T, method, path string, vendorID uint, body interface{}) envelope {
	t.Helper()
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if vendorID > 0 {
		req.Header.Set("X-Test-Vendor", fmt.Sprint(vendorID))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected http status %d: %s", w.Code, w.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return resp
}

func (env *adminTestEnv) subOrderOf(t *testing.T, vendorID uint) models.SubOrder {
	t.Helper()
	resp := env.do(t, http.MethodGet, "/vendor/sub-orders", vendorID, nil)
	var list []models.SubOrder
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("vendor %d should see exactly one sub-order, got %d", vendorID, len(list))
	}
	return list[0]
}

func TestVendorSeesOnlyOwnSubOrders(t *testing.T) {
	env := newAdminTestEnv(t)
	subA := env.subOrderOf(t, env.vendorA.ID)
	subB := env.subOrderOf(t, env.vendorB.ID)
	if subA.VendorID != env.vendorA.ID || subB.VendorID != env.vendorB.ID {
		t.Fatalf("vendor scope leaked: %+v %+v", subA, subB)
	}

	resp := env.do(t, http.MethodGet, fmt.Sprintf("/vendor/sub-orders/%d", subB.ID), env.vendorA.ID, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("other vendor's sub-order must look missing, got %+v", resp)
	}
	resp = env.do(t, http.MethodPatch, fmt.Sprintf("/vendor/sub-orders/%d/status", subB.ID), env.vendorA.ID, gin.H{"status": constants.SubOrderStatusShipped})
	if resp.StatusCode != 404 {
		t.Fatalf("other vendor's sub-order must not be updated, got %+v", resp)
	}

	all := env.do(t, http.MethodGet, "/vendor/sub-orders", 0, nil)
	var list []models.SubOrder
	_ = json.Unmarshal(all.Data, &list)
	if len(list) != 2 {
		t.Fatalf("operator should see every sub-order, got %d", len(list))
	}
}

func TestSubOrderStatusUpdate(t *testing.T) {
	env := newAdminTestEnv(t)
	subA := env.subOrderOf(t, env.vendorA.ID)
	path := fmt.Sprintf("/vendor/sub-orders/%d/status", subA.ID)

	resp := env.do(t, http.MethodPatch, path, env.vendorA.ID, gin.H{"status": "Lost"})
	if resp.StatusCode != 400 {
		t.Fatalf("unknown status should be rejected, got %+v", resp)
	}
	resp = env.do(t, http.MethodPatch, path, env.vendorA.ID, gin.H{"status": constants.SubOrderStatusShipped})
	if resp.StatusCode != 0 {
		t.Fatalf("ship failed: %+v", resp)
	}
	resp = env.do(t, http.MethodPatch, path, env.vendorA.ID, gin.H{"status": constants.SubOrderStatusPending})
	if resp.StatusCode != 409 {
		t.Fatalf("shipped sub-order cannot go back to pending, got %+v", resp)
	}
}

func TestAdminOrderPatchAndDispatch(t *testing.T) {
	env := newAdminTestEnv(t)
	orderPath := fmt.Sprintf("/admin/orders/%d", env.order.ID)

	resp := env.do(t, http.MethodPatch, orderPath, 0, gin.H{"total_amount": "1.00"})
	if resp.StatusCode != 400 {
		t.Fatalf("immutable field must be rejected, got %+v", resp)
	}
	resp = env.do(t, http.MethodPatch, "/admin/orders/999", 0, gin.H{"status": constants.OrderStatusShipped})
	if resp.StatusCode != 404 {
		t.Fatalf("missing order should be 404, got %+v", resp)
	}

	resp = env.do(t, http.MethodGet, "/admin/orders/"+env.order.OrderNumber, 0, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("get by order number failed: %+v", resp)
	}

	resp = env.do(t, http.MethodPost, "/admin/orders/"+env.order.OrderNumber+"/dispatch", 0, nil)
	var report DispatchReport
	if err := json.Unmarshal(resp.Data, &report); err != nil || resp.StatusCode != 0 {
		t.Fatalf("dispatch rerun failed: %+v %v", resp, err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected two vendor results, got %+v", report.Results)
	}
	for _, result := range report.Results {
		if result.Outcome != constants.DispatchOutcomeAlreadySent {
			t.Fatalf("rerun must not create new sub-orders: %+v", result)
		}
	}
}

func TestAuthzSnapshot(t *testing.T) {
	env := newAdminTestEnv(t)
	resp := env.do(t, http.MethodGet, "/admin/authz/roles", 0, nil)
	var roles []struct {
		Name    string `json:"name"`
		Builtin bool   `json:"builtin"`
	}
	if err := json.Unmarshal(resp.Data, &roles); err != nil || len(roles) != 2 {
		t.Fatalf("builtin roles should be listed: %+v %v", resp, err)
	}

	resp = env.do(t, http.MethodGet, "/admin/authz/me", env.vendorA.ID, nil)
	var me struct {
		Role     string            `json:"role"`
		VendorID uint              `json:"vendor_id"`
		Policies []json.RawMessage `json:"policies"`
	}
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode snapshot failed: %v", err)
	}
	if me.Role != constants.StaffRoleVendor || me.VendorID != env.vendorA.ID || len(me.Policies) != 3 {
		t.Fatalf("unexpected snapshot: %+v", me)
	}

	resp = env.do(t, http.MethodGet, "/admin/authz/me", 0, nil)
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode operator snapshot failed: %v", err)
	}
	if me.Role != constants.StaffRoleOperator || len(me.Policies) != 4 {
		t.Fatalf("operator snapshot should include inherited vendor policies: %+v", me)
	}
}

func TestAuthzPolicyChanges(t *testing.T) {
	env := newAdminTestEnv(t)
	builtin := map[string]string{"role": "vendor", "object": "/vendor/sub-orders", "action": "GET"}
	if resp := env.do(t, http.MethodDelete, "/admin/authz/policies", 0, builtin); resp.StatusCode != 409 {
		t.Fatalf("builtin policy revoke should conflict, got %d", resp.StatusCode)
	}

	custom := map[string]string{"role": "auditor", "object": "/admin/orders/:id", "action": "GET"}
	if resp := env.do(t, http.MethodPost, "/admin/authz/policies", 0, custom); resp.StatusCode != 0 {
		t.Fatalf("grant failed: %+v", resp)
	}
	if resp := env.do(t, http.MethodDelete, "/admin/authz/policies", 0, custom); resp.StatusCode != 0 {
		t.Fatalf("revoke failed: %+v", resp)
	}
	if resp := env.do(t, http.MethodPost, "/admin/authz/policies", 0, map[string]string{"role": "auditor"}); resp.StatusCode != 400 {
		t.Fatalf("incomplete payload should be rejected, got %d", resp.StatusCode)
	}
}
