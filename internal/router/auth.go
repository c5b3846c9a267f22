package router

import (
	"errors"
	"strings"

	"github.com/bazaar-next/internal/authz"
	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入、handlers 读取的上下文 key
const (
	contextKeyUserID     = "user_id"
	contextKeyUserEmail  = "user_email"
	contextKeyStaffID    = "staff_id"
	contextKeyStaffActor = "staff_actor"
)

// bearerToken 取 Authorization: Bearer <token>，格式不对时返回空串
func bearerToken(c *gin.Context) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abortUnauthorized(c *gin.Context) {
	response.Unauthorized(c, handlershared.Message("error.unauthorized"))
	c.Abort()
}

// BuyerJWTAuthMiddleware 校验外部认证服务签发的买家令牌，写入 user_id
func BuyerJWTAuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if auth == nil || token == "" {
			abortUnauthorized(c)
			return
		}
		claims, err := auth.ParseBuyerToken(token)
		if err != nil {
			logger.For(c.Request.Context()).Debugw("buyer_token_rejected", "error", err)
			abortUnauthorized(c)
			return
		}
		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyUserEmail, claims.Email)
		c.Next()
	}
}

// StaffJWTAuthMiddleware 校验员工令牌，写入 StaffActor
func StaffJWTAuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if auth == nil || token == "" {
			abortUnauthorized(c)
			return
		}
		claims, err := auth.ParseStaffToken(token)
		if err != nil {
			if !errors.Is(err, service.ErrTokenInvalid) {
				logger.For(c.Request.Context()).Warnw("staff_token_parse_failed", "error", err)
			}
			abortUnauthorized(c)
			return
		}
		c.Set(contextKeyStaffID, claims.StaffID)
		c.Set(contextKeyStaffActor, claims.Actor())
		c.Next()
	}
}

// StaffRBACMiddleware 路由级授权：角色对路由模板与方法的 casbin 判定。
// 授权服务故障按 401 处理，不向调用方暴露内部细节。
func StaffRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Get(contextKeyStaffActor)
		actor, ok := raw.(service.StaffActor)
		if !ok || actor.Role == "" || authzService == nil {
			abortUnauthorized(c)
			return
		}
		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}
		log := logger.For(c.Request.Context(),
			"actor", actor.Subject,
			"role", actor.Role,
			"method", c.Request.Method,
			"resource", authz.NormalizeObject(resource),
		)

		allowed, err := authzService.Authorize(actor.Role, resource, c.Request.Method)
		switch {
		case err != nil:
			log.Errorw("staff_rbac_enforce_failed", "error", err)
			abortUnauthorized(c)
		case !allowed:
			log.Warnw("staff_rbac_permission_denied")
			response.Forbidden(c, handlershared.Message("error.forbidden"))
			c.Abort()
		default:
			c.Next()
		}
	}
}
