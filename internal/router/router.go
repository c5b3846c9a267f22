package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bazaar-next/internal/authz"
	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/config"
	adminhandlers "github.com/bazaar-next/internal/http/handlers/admin"
	publichandlers "github.com/bazaar-next/internal/http/handlers/public"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按买家侧/员工侧分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()
	checkoutRule := RateLimitRuleFrom("checkout", cfg.Security.CheckoutRateLimit)
	callbackRule := RateLimitRuleFrom("callback", cfg.Security.CallbackRateLimit)

	// 中间件
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(RecoveryMiddleware())
	r.Use(MetricsMiddleware(c.Metrics))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 网关回调（签名校验在服务层完成）
		apiV1.POST("/payments/callback", RateLimitMiddleware(redisClient, callbackRule, KeyByIP), publicHandler.PaymentCallback)

		// 买家接口（需鉴权）
		buyer := apiV1.Group("")
		buyer.Use(BuyerJWTAuthMiddleware(c.AuthService))
		{
			buyer.POST("/orders", RateLimitMiddleware(redisClient, checkoutRule, KeyByBuyer), publicHandler.Checkout)
			buyer.GET("/orders", publicHandler.ListOrders)
			buyer.GET("/orders/:order_no", publicHandler.GetOrder)
			buyer.POST("/orders/:order_no/settlement", publicHandler.AppendSettlement)
			buyer.GET("/me/profile", publicHandler.GetMyProfile)
		}

		// 员工接口
		staff := apiV1.Group("")
		staff.Use(StaffJWTAuthMiddleware(c.AuthService))
		{
			// 任何有效员工都可查看自己的权限快照
			staff.GET("/staff/me", adminHandler.GetAuthzMe)

			authorized := staff.Group("")
			authorized.Use(StaffRBACMiddleware(c.AuthzService))

			vendor := authorized.Group("/vendor")
			{
				vendor.GET("/sub-orders", adminHandler.ListSubOrders)
				vendor.GET("/sub-orders/:id", adminHandler.GetSubOrder)
				vendor.PATCH("/sub-orders/:id/status", adminHandler.UpdateSubOrderStatus)
			}

			admin := authorized.Group("/admin")
			{
				admin.GET("/orders/:id", adminHandler.AdminGetOrder)
				admin.PATCH("/orders/:id", adminHandler.AdminUpdateOrderStatus)
				admin.POST("/orders/:id/dispatch", adminHandler.AdminDispatchOrder)

				admin.GET("/sub-orders", adminHandler.ListSubOrders)
				admin.GET("/sub-orders/:id", adminHandler.GetSubOrder)
				admin.PATCH("/sub-orders/:id/status", adminHandler.UpdateSubOrderStatus)

				admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
				admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				admin.GET("/authz/permissions", func(ctx *gin.Context) {
					response.Success(ctx, buildStaffPermissionCatalog(r))
				})
			}
		}
	}

	// 健康检查
	r.GET("/healthz", func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if err := pingDatabase(checkCtx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := cache.Ping(checkCtx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		if !healthy {
			response.ErrorWithData(ctx, response.CodeServiceUnavailable, "unhealthy", checks)
			return
		}
		response.Success(ctx, checks)
	})
	r.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	return r
}

func pingDatabase(ctx context.Context) error {
	if models.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type staffPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildStaffPermissionCatalog 列出所有受 RBAC 保护的路由，供运营配置角色策略
func buildStaffPermissionCatalog(engine *gin.Engine) []staffPermissionCatalogItem {
	if engine == nil {
		return []staffPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]staffPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") && !strings.HasPrefix(item.Path, "/api/v1/vendor/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, staffPermissionCatalogItem{
			Module:     derivePermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func derivePermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] == "vendor" {
		return "vendor"
	}
	return segments[1]
}
