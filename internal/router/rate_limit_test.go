package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newRateLimitedEngine(t *testing.T, rule RateLimitRule, keyFunc RateLimitKeyFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-User"); raw != "" {
			c.Set("user_id", uint(len(raw)))
		}
		c.Next()
	})
	r.Use(RateLimitMiddleware(client, rule, keyFunc))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, mr
}

func statusCodeOf(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	if !strings.Contains(w.Body.String(), "status_code") {
		return 0
	}
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func doPing(r *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass without redis, got %s", i, w.Body.String())
		}
	}
}

func TestRateLimitMiddlewareLimitsWithinWindow(t *testing.T) {
	r, mr := newRateLimitedEngine(t, RateLimitRule{Name: "test", WindowSeconds: 60, MaxRequests: 2}, KeyByIP)

	for i := 0; i < 2; i++ {
		if w := doPing(r, ""); !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass, got %s", i, w.Body.String())
		}
	}
	w := doPing(r, "")
	if code := statusCodeOf(t, w); code != 429 {
		t.Fatalf("third request should be limited, got %d body=%s", code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "retry_after_seconds") {
		t.Fatalf("limited response should carry retry hint: %s", w.Body.String())
	}

	mr.FastForward(61 * time.Second)
	if w := doPing(r, ""); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("request after window should pass, got %s", w.Body.String())
	}
}

func TestRateLimitMiddlewareBlocksAfterBurst(t *testing.T) {
	r, mr := newRateLimitedEngine(t, RateLimitRule{Name: "block", WindowSeconds: 10, MaxRequests: 1, BlockSeconds: 120}, KeyByIP)

	doPing(r, "")
	if code := statusCodeOf(t, doPing(r, "")); code != 429 {
		t.Fatalf("second request should be limited, got %d", code)
	}
	// 计数窗口过期后仍在封禁期内
	mr.FastForward(30 * time.Second)
	if code := statusCodeOf(t, doPing(r, "")); code != 429 {
		t.Fatalf("request during block should be limited, got %d", code)
	}
	mr.FastForward(121 * time.Second)
	if w := doPing(r, ""); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("request after block should pass, got %s", w.Body.String())
	}
}

func TestKeyByBuyerSeparatesBuyers(t *testing.T) {
	r, _ := newRateLimitedEngine(t, RateLimitRule{Name: "checkout", WindowSeconds: 60, MaxRequests: 1}, KeyByBuyer)

	if w := doPing(r, "a"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("first buyer first request should pass")
	}
	if w := doPing(r, "bb"); !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("second buyer has its own budget")
	}
	if code := statusCodeOf(t, doPing(r, "a")); code != 429 {
		t.Fatalf("first buyer second request should be limited, got %d", code)
	}
}

func TestRateLimitKeysLiveUnderCachePrefix(t *testing.T) {
	r, mr := newRateLimitedEngine(t, RateLimitRule{Name: "checkout", WindowSeconds: 60, MaxRequests: 5}, KeyByBuyer)

	w := doPing(r, "abc")
	if w.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("remaining budget header want 4 got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if !mr.Exists("bz:rate:checkout:buyer:3") {
		t.Fatalf("expected buyer scoped key, got %v", mr.Keys())
	}
	doPing(r, "")
	if !mr.Exists("bz:rate:checkout:10.0.0.1") {
		t.Fatalf("anonymous requests should fall back to ip, got %v", mr.Keys())
	}
}

func TestRateLimitRuleFromConfig(t *testing.T) {
	rule := RateLimitRuleFrom("callback", config.RateLimitConfig{WindowSeconds: 60, MaxRequests: 300})
	if rule.Name != "callback" || !rule.active() {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	if (RateLimitRule{Name: "off", WindowSeconds: 60}).active() {
		t.Fatalf("rule without budget should be inactive")
	}
}
