package cache

import (
	"strconv"
	"strings"
)

const defaultPrefix = "bz"

// Join 在前缀下拼接键，空段会被跳过
func Join(prefix string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	for _, part := range append([]string{prefix}, parts...) {
		if part = strings.Trim(strings.TrimSpace(part), ":"); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}

// Qualified 当前前缀下的完整键，供直接使用客户端的调用方
func Qualified(key string) string {
	return Join(Prefix(), key)
}

// BuyerProfileKey 买家档案缓存
func BuyerProfileKey(buyerID uint) string {
	return "buyer:profile:" + strconv.FormatUint(uint64(buyerID), 10)
}

// OrderSequenceKey redis 策略下的订单号计数器
func OrderSequenceKey() string {
	return "order:sequence"
}

// RateLimitKey 限流计数键；封禁标记在其后追加 :block
func RateLimitKey(rule, subject string) string {
	return Join("rate", rule, subject)
}
