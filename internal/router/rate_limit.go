package router

import (
	"strconv"
	"strings"

	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/config"
	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 从请求中取限流主体，返回空串时按客户端 IP 计数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流。
// 窗口内超过 MaxRequests 次后，BlockSeconds > 0 时整段封禁，否则等窗口过期。
type RateLimitRule struct {
	Name          string
	WindowSeconds int
	MaxRequests   int
	BlockSeconds  int
}

// RateLimitRuleFrom 由配置生成规则
func RateLimitRuleFrom(name string, cfg config.RateLimitConfig) RateLimitRule {
	return RateLimitRule{
		Name:          name,
		WindowSeconds: cfg.WindowSeconds,
		MaxRequests:   cfg.MaxRequests,
		BlockSeconds:  cfg.BlockSeconds,
	}
}

func (r RateLimitRule) active() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

// 返回 {计数, 剩余秒数}；计数为 -1 表示处于封禁期
var rateLimitScript = redis.NewScript(`
local blocked = redis.call("TTL", KEYS[2])
if blocked > 0 then
	return {-1, blocked}
end
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
local block = tonumber(ARGV[3])
if current > tonumber(ARGV[2]) and block > 0 then
	redis.call("SET", KEYS[2], "1", "EX", block)
	return {current, block}
end
return {current, ttl}
`)

// RateLimitMiddleware Redis 限流；未配置 Redis 或规则未启用时放行。
// Redis 出错时拒绝请求，结账与回调都不应在限流失效时裸奔。
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || !rule.active() {
			c.Next()
			return
		}
		subject := ""
		if keyFunc != nil {
			subject = strings.TrimSpace(keyFunc(c))
		}
		if subject == "" {
			subject = c.ClientIP()
		}
		key := cache.Qualified(cache.RateLimitKey(rule.Name, subject))

		values, err := rateLimitScript.Run(c.Request.Context(), client,
			[]string{key, key + ":block"},
			rule.WindowSeconds, rule.MaxRequests, rule.BlockSeconds,
		).Int64Slice()
		if err != nil || len(values) < 2 {
			logger.For(c.Request.Context()).Warnw("rate_limit_check_failed", "rule", rule.Name, "key", key, "error", err)
			response.Error(c, response.CodeServiceUnavailable, handlershared.Message("error.internal"))
			c.Abort()
			return
		}

		count, ttl := values[0], values[1]
		if count >= 0 && count <= int64(rule.MaxRequests) {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(rule.MaxRequests)-count, 10))
			c.Next()
			return
		}

		retryAfter := int(ttl)
		if retryAfter < 1 {
			retryAfter = max(rule.WindowSeconds, 1)
		}
		logger.For(c.Request.Context()).Infow("rate_limit_rejected", "rule", rule.Name, "subject", subject, "retry_after_seconds", retryAfter)
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		response.ErrorWithData(c, response.CodeTooManyRequests, handlershared.Message("error.too_many_requests"), gin.H{
			"retry_after_seconds": retryAfter,
		})
		c.Abort()
	}
}

// KeyByIP 按客户端 IP 计数
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByBuyer 按鉴权中间件写入的买家 ID 计数，未登录时回落到 IP
func KeyByBuyer(c *gin.Context) string {
	if buyerID, ok := c.Get(contextKeyUserID); ok {
		if id, ok := buyerID.(uint); ok && id > 0 {
			return "buyer:" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return c.ClientIP()
}
