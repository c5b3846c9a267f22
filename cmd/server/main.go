package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/bazaar-next/internal/app"
	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/payment/gateway"

	"github.com/gin-gonic/gin"
)

const releaseMode = "release"

func main() {
	mode := flag.String("mode", string(app.ModeAll), "启动模式: all (默认), api, worker")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	printBanner(*mode)

	if err := checkSecrets(cfg); err != nil {
		stdLog.Fatalf("%v", err)
	}
	if err := gateway.ValidateConfig(&gateway.Config{
		CheckoutBaseURL: cfg.Gateway.CheckoutBaseURL,
		CallbackURL:     cfg.Gateway.CallbackURL,
		CallbackSecret:  cfg.Gateway.CallbackSecret,
	}); err != nil {
		stdLog.Fatalf("支付网关配置无效: %v", err)
	}
	if err := openDatabase(cfg.Database); err != nil {
		stdLog.Fatalf("%v", err)
	}
	if cfg.Server.Mode == releaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    app.Mode(*mode),
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func openDatabase(cfg config.DatabaseConfig) error {
	if err := models.InitDB(cfg.Driver, cfg.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// checkSecrets release 模式下弱密钥直接拒绝启动，其余模式只告警
func checkSecrets(cfg *config.Config) error {
	secrets := map[string]string{
		"user_jwt.secret":         cfg.UserJWT.SecretKey,
		"staff_jwt.secret":        cfg.StaffJWT.SecretKey,
		"gateway.callback_secret": cfg.Gateway.CallbackSecret,
	}
	var weak []string
	for name, secret := range secrets {
		if isWeakSecret(secret) {
			weak = append(weak, name)
		}
	}
	if len(weak) == 0 {
		return nil
	}
	sort.Strings(weak)
	if cfg.Server.Mode == releaseMode {
		return fmt.Errorf("%s 过弱或仍为默认值，请在生产环境中配置强随机密钥", strings.Join(weak, ", "))
	}
	logger.Warnw("weak_secrets_configured", "keys", weak)
	return nil
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	for _, marker := range []string{"change-me", "change-in-production", "your-secret-key"} {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func printBanner(mode string) {
	const (
		reset = "\033[0m"
		bold  = "\033[1m"
		cyan  = "\033[36m"
		dim   = "\033[2m"
	)
	fmt.Println(cyan + bold + "bazaar-next settlement" + reset + dim + "  mode=" + mode + reset)
	fmt.Println(dim + "checkout -> payment -> vendor fan-out -> buyer profile" + reset)
}
