package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/payment/gateway"
	"github.com/bazaar-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testCallbackSecret = "public-handler-secret"

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type publicTestEnv struct {
	db      *gorm.DB
	router  *gin.Engine
	product models.Product
	other   models.Product
}

func newPublicTestEnv(t *testing.T) *publicTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		Order: config.OrderConfig{SequenceStrategy: config.SequenceStrategyDB, Currency: "INR"},
		Gateway: config.GatewayConfig{
			CheckoutBaseURL: "https://pay.test/checkout",
			CallbackURL:     "https://api.test/api/v1/payments/callback",
			CallbackSecret:  testCallbackSecret,
		},
	}
	h := New(provider.Build(cfg, db, nil))

	env := &publicTestEnv{db: db}
	vendorA := models.Vendor{BusinessName: "Vendor A", OwnerEmail: "a@vendor.test", IsApproved: true}
	vendorB := models.Vendor{BusinessName: "Vendor B", OwnerEmail: "b@vendor.test", IsApproved: true}
	for _, v := range []*models.Vendor{&vendorA, &vendorB} {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("create vendor failed: %v", err)
		}
	}
	env.product = models.Product{VendorID: vendorA.ID, Name: "Brass Lamp", Price: models.MustMoney("100"), IsActive: true}
	env.other = models.Product{VendorID: vendorB.ID, Name: "Tea Tin", Price: models.MustMoney("50"), IsActive: true}
	for _, p := range []*models.Product{&env.product, &env.other} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}

	// 测试中以请求头模拟买家鉴权结果
	asBuyer := func(c *gin.Context) {
		var uid uint
		if _, err := fmt.Sscan(c.GetHeader("X-Test-User"), &uid); err == nil {
			c.Set("user_id", uid)
		}
		c.Next()
	}
	r := gin.New()
	r.POST("/payments/callback", h.PaymentCallback)
	buyer := r.Group("", asBuyer)
	buyer.POST("/orders", h.Checkout)
	buyer.GET("/orders", h.ListOrders)
	buyer.GET("/orders/:order_no", h.GetOrder)
	buyer.POST("/orders/:order_no/settlement", h.AppendSettlement)
	buyer.GET("/me/profile", h.GetMyProfile)
	env.router = r
	return env
}

func (env *publicTestEnv) do(t *testing.T, method, path string, buyerID uint, body []byte, headers map[string]string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if buyerID > 0 {
		req.Header.Set("X-Test-User", fmt.Sprint(buyerID))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v body=%s", err, w.Body.String())
	}
	return w.Code, resp
}

func (env *publicTestEnv) checkoutBody(method string, extra map[string]interface{}) []byte {
	body := map[string]interface{}{
		"buyer": map[string]string{"name": "Asha Rao", "email": "asha@example.com", "phone": "+91 98450 12345"},
		"shipping_address": map[string]string{
			"street": "12 MG Road", "city": "Bengaluru", "state": "KA", "zip": "560001",
		},
		"payment_method": method,
		"items": []map[string]interface{}{
			{"product_id": env.product.ID, "quantity": 2},
			{"product_id": env.other.ID, "quantity": 1},
		},
		"total_amount": "1.00",
	}
	for k, v := range extra {
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return raw
}

type checkoutData struct {
	Order struct {
		OrderNumber   string `json:"order_number"`
		OrderToken    string `json:"order_id"`
		PaymentStatus string `json:"payment_status"`
		TotalAmount   string `json:"total_amount"`
	} `json:"order"`
	GatewaySession *struct {
		SessionID string `json:"session_id"`
	} `json:"gateway_session"`
	Replayed bool `json:"replayed"`
}

func TestCheckoutCODIgnoresClientTotals(t *testing.T) {
	env := newPublicTestEnv(t)
	code, resp := env.do(t, http.MethodPost, "/orders", 42, env.checkoutBody(constants.PaymentMethodCOD, map[string]interface{}{"client_request_id": "req-1"}), nil)
	if code != http.StatusOK || resp.StatusCode != 0 {
		t.Fatalf("checkout failed: %d %+v", code, resp)
	}
	var data checkoutData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}
	if data.Order.OrderNumber != "ORD000001" || data.Order.TotalAmount != "250.00" {
		t.Fatalf("unexpected order: %+v", data.Order)
	}
	if data.Order.PaymentStatus != constants.PaymentStatusPending || data.GatewaySession != nil {
		t.Fatalf("cod order should be pending without session: %+v", data)
	}

	_, replay := env.do(t, http.MethodPost, "/orders", 42, env.checkoutBody(constants.PaymentMethodCOD, map[string]interface{}{"client_request_id": "req-1"}), nil)
	var replayed checkoutData
	_ = json.Unmarshal(replay.Data, &replayed)
	if !replayed.Replayed || replayed.Order.OrderNumber != "ORD000001" {
		t.Fatalf("same client_request_id should replay: %+v", replayed)
	}
}

func TestCheckoutValidationErrors(t *testing.T) {
	env := newPublicTestEnv(t)
	cases := []struct {
		name  string
		extra map[string]interface{}
		want  int
	}{
		{name: "empty cart", extra: map[string]interface{}{"items": []interface{}{}}, want: 400},
		{name: "unknown method", extra: map[string]interface{}{"payment_method": "barter"}, want: 400},
		{name: "missing address", extra: map[string]interface{}{"shipping_address": map[string]string{"city": "Pune"}}, want: 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp := env.do(t, http.MethodPost, "/orders", 1, env.checkoutBody(constants.PaymentMethodCOD, tc.extra), nil)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %+v", tc.want, resp)
			}
		})
	}

	_, resp := env.do(t, http.MethodPost, "/orders", 0, env.checkoutBody(constants.PaymentMethodCOD, nil), nil)
	if resp.StatusCode != 401 {
		t.Fatalf("missing buyer should be unauthorized, got %+v", resp)
	}
}

func TestOnlineCheckoutCallbackAndSettlement(t *testing.T) {
	env := newPublicTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/orders", 7, env.checkoutBody(constants.PaymentMethodOnline, nil), nil)
	var data checkoutData
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.GatewaySession == nil {
		t.Fatalf("online checkout should return session: %+v %v", resp, err)
	}
	orderNo := data.Order.OrderNumber

	_, early := env.do(t, http.MethodPost, "/orders/"+orderNo+"/settlement", 7, nil, nil)
	if early.StatusCode != 409 {
		t.Fatalf("unpaid order cannot be settled, got %+v", early)
	}

	payload, _ := json.Marshal(gateway.CallbackPayload{
		SessionID: data.GatewaySession.SessionID,
		Status:    constants.GatewayOutcomeSuccess,
	})
	code, bad := env.do(t, http.MethodPost, "/payments/callback", 0, payload, map[string]string{gateway.SignatureHeader: "deadbeef"})
	if code != http.StatusOK || bad.StatusCode != 401 {
		t.Fatalf("bad signature should be rejected without retry: %d %+v", code, bad)
	}
	signature := gateway.Sign(testCallbackSecret, payload)
	_, ok := env.do(t, http.MethodPost, "/payments/callback", 0, payload, map[string]string{gateway.SignatureHeader: signature})
	var cb PaymentCallbackResponse
	if err := json.Unmarshal(ok.Data, &cb); err != nil || !cb.Applied || cb.PaymentStatus != constants.PaymentStatusConfirmed {
		t.Fatalf("callback should confirm: %+v %v", ok, err)
	}
	_, again := env.do(t, http.MethodPost, "/payments/callback", 0, payload, map[string]string{gateway.SignatureHeader: signature})
	_ = json.Unmarshal(again.Data, &cb)
	if again.StatusCode != 0 || cb.Applied || !cb.Idempotent {
		t.Fatalf("duplicate callback should be idempotent: %+v", again)
	}

	_, stranger := env.do(t, http.MethodGet, "/orders/"+orderNo, 8, nil, nil)
	if stranger.StatusCode != 404 {
		t.Fatalf("other buyers must not see the order, got %+v", stranger)
	}

	for i := 0; i < 2; i++ {
		_, settled := env.do(t, http.MethodPost, "/orders/"+orderNo+"/settlement", 7, nil, nil)
		if settled.StatusCode != 0 {
			t.Fatalf("settlement append failed: %+v", settled)
		}
	}
	_, profile := env.do(t, http.MethodGet, "/me/profile", 7, nil, nil)
	var p models.BuyerProfile
	if err := json.Unmarshal(profile.Data, &p); err != nil {
		t.Fatalf("decode profile failed: %v", err)
	}
	if len(p.OrderHistory) != 1 || p.OrderHistory[0].OrderNumber != orderNo {
		t.Fatalf("profile should hold the order once: %+v", p.OrderHistory)
	}

	var subOrders int64
	if err := env.db.Model(&models.SubOrder{}).Count(&subOrders).Error; err != nil || subOrders != 2 {
		t.Fatalf("confirmed payment should fan out to both vendors, got %d %v", subOrders, err)
	}
}

func TestSettlementRejectsIncompleteAddress(t *testing.T) {
	env := newPublicTestEnv(t)
	_, resp := env.do(t, http.MethodPost, "/orders", 3, env.checkoutBody(constants.PaymentMethodCOD, nil), nil)
	var data checkoutData
	_ = json.Unmarshal(resp.Data, &data)

	body, _ := json.Marshal(map[string]interface{}{"address": map[string]string{"city": "Pune"}})
	_, settled := env.do(t, http.MethodPost, "/orders/"+data.Order.OrderNumber+"/settlement", 3, body, nil)
	if settled.StatusCode != 400 {
		t.Fatalf("incomplete address should be rejected, got %+v", settled)
	}

	code, list := env.do(t, http.MethodGet, "/orders?page=1&page_size=10", 3, nil, nil)
	if code != http.StatusOK || list.StatusCode != 0 {
		t.Fatalf("list orders failed: %+v", list)
	}
	var orders []map[string]interface{}
	if err := json.Unmarshal(list.Data, &orders); err != nil || len(orders) != 1 {
		t.Fatalf("expected one order, got %s %v", list.Data, err)
	}
}
