package provider

import (
	"github.com/bazaar-next/internal/authz"
	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/metrics"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/repository"
	"github.com/bazaar-next/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Metrics     *metrics.Metrics

	// Repositories
	OrderRepo    repository.OrderRepository
	CatalogRepo  repository.CatalogRepository
	SubOrderRepo repository.SubOrderRepository
	ProfileRepo  repository.BuyerProfileRepository
	SequenceRepo repository.SequenceRepository

	// Services
	AuthzService       *authz.Service
	AuthService        *service.AuthService
	Allocator          service.OrderNumberAllocator
	OrderService       *service.OrderService
	FanoutDispatcher   *service.FanoutDispatcher
	DispatchTrigger    *service.QueuedDispatchTrigger
	PaymentReconciler  *service.PaymentReconciler
	CheckoutService    *service.CheckoutService
	SubOrderService    *service.SubOrderService
	ProfileCompensator *service.ProfileCompensator
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	return Build(cfg, models.DB, queueClient)
}

// Build 基于给定数据库连接装配容器，队列客户端可为空
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Metrics:     metrics.New(),
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化 Services
	c.initServices(db)

	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.OrderRepo = repository.NewOrderRepository(db)
	c.CatalogRepo = repository.NewCatalogRepository(db)
	c.SubOrderRepo = repository.NewSubOrderRepository(db)
	c.ProfileRepo = repository.NewBuyerProfileRepository(db)
	c.SequenceRepo = repository.NewSequenceRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config.UserJWT, c.Config.StaffJWT)

	strategy := c.Config.Order.SequenceStrategy
	if strategy == config.SequenceStrategyRedis && !cache.Enabled() {
		logger.Warnw("provider_sequence_strategy_fallback", "requested", strategy, "fallback", config.SequenceStrategyDB)
	}
	c.Allocator = service.NewOrderNumberAllocator(strategy, c.SequenceRepo, c.OrderRepo, cache.Client(), cache.Prefix())
	logger.Infow("provider_sequence_allocator_ready", "strategy", c.Allocator.Strategy())

	c.OrderService = service.NewOrderService(c.OrderRepo, c.CatalogRepo, c.Allocator, c.Metrics, c.Config.Order.Currency, c.Config.Order.MaxItems)
	c.FanoutDispatcher = service.NewFanoutDispatcher(c.OrderRepo, c.SubOrderRepo, c.Metrics)

	var enqueuer service.FanoutEnqueuer
	if c.QueueClient != nil {
		enqueuer = c.QueueClient
	}
	c.DispatchTrigger = service.NewQueuedDispatchTrigger(enqueuer, c.FanoutDispatcher)
	c.OrderService.WithDispatchTrigger(c.DispatchTrigger)

	gateway := service.GatewaySettings{
		CheckoutBaseURL: c.Config.Gateway.CheckoutBaseURL,
		CallbackURL:     c.Config.Gateway.CallbackURL,
		CallbackSecret:  c.Config.Gateway.CallbackSecret,
	}
	c.PaymentReconciler = service.NewPaymentReconciler(c.OrderRepo, c.DispatchTrigger, gateway, c.Metrics)
	c.CheckoutService = service.NewCheckoutService(c.OrderService, c.PaymentReconciler)
	c.SubOrderService = service.NewSubOrderService(c.OrderRepo, c.SubOrderRepo)
	c.ProfileCompensator = service.NewProfileCompensator(c.OrderRepo, c.ProfileRepo, c.Metrics)
}
