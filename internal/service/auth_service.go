package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 令牌无效或声明不完整
var ErrTokenInvalid = errors.New("token invalid")

// BuyerClaims 买家 JWT 声明，由外部认证服务签发
type BuyerClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// StaffClaims 员工 JWT 声明，vendor 角色必须携带 vendor_id
type StaffClaims struct {
	StaffID  uint   `json:"staff_id"`
	Role     string `json:"role"`
	VendorID uint   `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor 转换为业务层操作人
func (c *StaffClaims) Actor() StaffActor {
	subject := c.Subject
	if subject == "" {
		subject = fmt.Sprintf("staff:%d", c.StaffID)
	}
	return StaffActor{
		Subject:  subject,
		Role:     c.Role,
		VendorID: c.VendorID,
	}
}

// AuthService 令牌校验服务（本地签发仅用于开发与种子数据）
type AuthService struct {
	buyer config.JWTConfig
	staff config.JWTConfig
}

// NewAuthService 创建令牌服务
func NewAuthService(buyer, staff config.JWTConfig) *AuthService {
	return &AuthService{buyer: buyer, staff: staff}
}

// IssueBuyerToken 签发买家令牌
func (s *AuthService) IssueBuyerToken(userID uint, email string) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := time.Now()
	expiresAt := now.Add(resolveExpireHours(s.buyer.ExpireHours, 24))
	claims := BuyerClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.buyer.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueStaffToken 签发员工令牌
func (s *AuthService) IssueStaffToken(staffID uint, role string, vendorID uint) (string, time.Time, error) {
	claims := StaffClaims{StaffID: staffID, Role: strings.TrimSpace(role), VendorID: vendorID}
	if err := validateStaffClaims(&claims); err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	expiresAt := now.Add(resolveExpireHours(s.staff.ExpireHours, 12))
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.staff.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseBuyerToken 解析买家令牌
func (s *AuthService) ParseBuyerToken(tokenString string) (*BuyerClaims, error) {
	claims := &BuyerClaims{}
	if err := parseHS256(tokenString, s.buyer.SecretKey, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseStaffToken 解析员工令牌
func (s *AuthService) ParseStaffToken(tokenString string) (*StaffClaims, error) {
	claims := &StaffClaims{}
	if err := parseHS256(tokenString, s.staff.SecretKey, claims); err != nil {
		return nil, err
	}
	if err := validateStaffClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseHS256(tokenString, secret string, claims jwt.Claims) error {
	if strings.TrimSpace(secret) == "" {
		return ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return errors.Join(ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func validateStaffClaims(claims *StaffClaims) error {
	switch claims.Role {
	case constants.StaffRoleOperator:
		return nil
	case constants.StaffRoleVendor:
		if claims.VendorID == 0 {
			return ErrTokenInvalid
		}
		return nil
	default:
		return ErrTokenInvalid
	}
}

func resolveExpireHours(hours, fallback int) time.Duration {
	if hours <= 0 {
		hours = fallback
	}
	return time.Duration(hours) * time.Hour
}
