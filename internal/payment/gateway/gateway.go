package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SignatureHeader 网关回调签名请求头
const SignatureHeader = "X-Gateway-Signature"

var (
	ErrConfigInvalid    = errors.New("gateway config invalid")
	ErrSignatureInvalid = errors.New("gateway signature invalid")
	ErrPayloadInvalid   = errors.New("gateway payload invalid")
)

// Config 托管支付网关配置
type Config struct {
	CheckoutBaseURL string `json:"checkout_base_url"` // 买家跳转的收银台地址
	CallbackURL     string `json:"callback_url"`      // 异步通知地址
	CallbackSecret  string `json:"callback_secret"`   // 回调签名密钥
}

// CallbackPayload 网关回调载荷，session_id / order_id / order_number 任选其一定位订单
type CallbackPayload struct {
	SessionID     string `json:"session_id"`
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"` // success / failure
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transaction_id"`
}

// ValidateConfig 校验网关配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.CallbackSecret) == "" {
		return fmt.Errorf("%w: callback_secret is required", ErrConfigInvalid)
	}
	for name, raw := range map[string]string{
		"checkout_base_url": cfg.CheckoutBaseURL,
		"callback_url":      cfg.CallbackURL,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: %s is not an absolute url", ErrConfigInvalid, name)
		}
	}
	return nil
}

// Sign 计算回调签名：HMAC-SHA256(secret, body) 的十六进制串
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较签名，密钥为空时一律拒绝
func Verify(secret string, body []byte, signature string) error {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if strings.TrimSpace(secret) == "" || signature == "" {
		return ErrSignatureInvalid
	}
	if !hmac.Equal([]byte(Sign(secret, body)), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseCallback 解析回调载荷
func ParseCallback(body []byte) (*CallbackPayload, error) {
	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	payload.SessionID = strings.TrimSpace(payload.SessionID)
	payload.OrderID = strings.TrimSpace(payload.OrderID)
	payload.OrderNumber = strings.TrimSpace(payload.OrderNumber)
	payload.Status = strings.ToLower(strings.TrimSpace(payload.Status))
	payload.Amount = strings.TrimSpace(payload.Amount)
	payload.Currency = strings.TrimSpace(payload.Currency)
	if payload.SessionID == "" && payload.OrderID == "" && payload.OrderNumber == "" {
		return nil, fmt.Errorf("%w: order reference missing", ErrPayloadInvalid)
	}
	return &payload, nil
}

// CheckoutURL 拼接收银台跳转地址，未配置时返回空
func CheckoutURL(baseURL, sessionID string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" || sessionID == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(sessionID)
}
