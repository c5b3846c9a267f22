package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bazaar-next/internal/logger"

	"github.com/spf13/viper"
)

// 订单号分配策略
const (
	SequenceStrategyDB     = "db"
	SequenceStrategyRedis  = "redis"
	SequenceStrategyLatest = "latest"
)

// 配置搜索路径：工作目录、从 cmd/* 运行时的上级目录、etc/
var defaultSearchPaths = []string{".", "../", "./etc"}

// Load 读取 config.yml 与环境变量（server.port -> SERVER_PORT），失败直接 panic
func Load() *Config {
	cfg, err := LoadFrom(defaultSearchPaths...)
	if err != nil {
		logger.Errorw("config_load_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

// LoadFrom 在给定目录中查找 config.yml；找不到文件时只用默认值与环境变量
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	applyDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file failed: %w", err)
		}
		logger.Warnw("config_file_not_found", "fallback", "env_or_defaults")
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	cfg.Order.SequenceStrategy = NormalizeSequenceStrategy(cfg.Order.SequenceStrategy)
	cfg.Order.Currency = strings.ToUpper(strings.TrimSpace(cfg.Order.Currency))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查启动必需项；密钥强度由入口按运行模式另行判断
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if len(c.Order.Currency) != 3 {
		errs = append(errs, fmt.Errorf("order.currency must be an ISO 4217 code, got %q", c.Order.Currency))
	}
	if c.Order.MaxItems <= 0 {
		errs = append(errs, errors.New("order.max_items must be positive"))
	}
	if c.Queue.Enabled && c.Queue.Concurrency <= 0 {
		errs = append(errs, errors.New("queue.concurrency must be positive when queue is enabled"))
	}
	if _, err := url.ParseRequestURI(c.Gateway.CallbackURL); err != nil {
		errs = append(errs, fmt.Errorf("gateway.callback_url invalid: %w", err))
	}
	return errors.Join(errs...)
}

// NormalizeSequenceStrategy 归一化分配策略，未知值回落到 db
func NormalizeSequenceStrategy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SequenceStrategyRedis:
		return SequenceStrategyRedis
	case SequenceStrategyLatest:
		return SequenceStrategyLatest
	default:
		return SequenceStrategyDB
	}
}

func applyDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"server.host":                        "0.0.0.0",
		"server.port":                        "8080",
		"server.mode":                        "debug",
		"server.read_header_timeout_seconds": 10,
		"server.shutdown_timeout_seconds":    15,

		"log.level":        "",
		"log.console":      false,
		"log.dir":          "",
		"log.filename":     "app.log",
		"log.max_size_mb":  100,
		"log.max_backups":  7,
		"log.max_age_days": 30,
		"log.compress":     true,

		"database.driver":                          "sqlite",
		"database.dsn":                             "./db/bazaar.db",
		"database.pool.max_open_conns":             1,
		"database.pool.max_idle_conns":             1,
		"database.pool.conn_max_lifetime_seconds":  0,
		"database.pool.conn_max_idle_time_seconds": 0,

		"user_jwt.secret":        "user-change-me-in-production",
		"user_jwt.expire_hours":  24,
		"staff_jwt.secret":       "staff-change-me-in-production",
		"staff_jwt.expire_hours": 12,

		"redis.enabled":  true,
		"redis.host":     "127.0.0.1",
		"redis.port":     6379,
		"redis.password": "",
		"redis.db":       0,
		"redis.prefix":   "bz",

		"queue.enabled":                true,
		"queue.host":                   "127.0.0.1",
		"queue.port":                   6379,
		"queue.password":               "",
		"queue.db":                     1,
		"queue.concurrency":            10,
		"queue.queues":                 map[string]int{"default": 10, "critical": 5},
		"queue.sweep_interval_seconds": 60,
		"queue.sweep_grace_seconds":    300,

		"cors.allowed_origins":   []string{"*"},
		"cors.allowed_methods":   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		"cors.allowed_headers":   []string{"Content-Type", "Content-Length", "Authorization", "X-Request-ID", "X-Gateway-Signature"},
		"cors.allow_credentials": true,
		"cors.max_age":           600,

		"security.checkout_rate_limit.window_seconds": 60,
		"security.checkout_rate_limit.max_requests":   20,
		"security.checkout_rate_limit.block_seconds":  120,
		"security.callback_rate_limit.window_seconds": 60,
		"security.callback_rate_limit.max_requests":   300,
		"security.callback_rate_limit.block_seconds":  60,

		"order.sequence_strategy": SequenceStrategyDB,
		"order.currency":          "INR",
		"order.max_items":         100,

		"gateway.checkout_base_url": "https://pay.example.com/checkout",
		"gateway.callback_url":      "http://127.0.0.1:8080/api/v1/payments/callback",
		"gateway.callback_secret":   "gateway-change-me-in-production",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
