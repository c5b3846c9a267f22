package app

import (
	"errors"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/provider"
	"github.com/bazaar-next/internal/router"
	"github.com/bazaar-next/internal/worker"
)

// ErrWorkerNeedsQueue worker 模式下必须开启队列
var ErrWorkerNeedsQueue = errors.New("worker mode requires queue.enabled")

// BuildRunner 按模式装配服务。
// 队列关闭时分单在请求内同步完成，worker 侧只剩补偿扫描。
func BuildRunner(cfg *config.Config, mode Mode) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if mode == ModeWorker && !cfg.Queue.Enabled {
		return nil, ErrWorkerNeedsQueue
	}

	container := provider.NewContainer(cfg)
	runner := NewRunner()

	if mode.ServesAPI() {
		runner.services = append(runner.services, NewHTTPService(cfg.Server, router.SetupRouter(cfg, container)))
	}
	if mode.RunsWorker() {
		consumer := worker.NewConsumer(container)
		var svc Service
		if cfg.Queue.Enabled {
			svc, err = worker.NewService(&cfg.Queue, consumer)
		} else {
			svc, err = worker.NewSweepService(&cfg.Queue, consumer)
		}
		if err != nil {
			return nil, err
		}
		runner.services = append(runner.services, svc)
	}

	if container.QueueClient != nil {
		runner.OnShutdown(container.QueueClient.Close)
	}
	return runner, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return err
	}
	runner, err := BuildRunner(opts.Config, mode)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(opts.Signals)
	defer stop()

	opts.Logger.Infow("app_start",
		"mode", mode,
		"queue_enabled", opts.Config.Queue.Enabled,
		"sequence_strategy", opts.Config.Order.SequenceStrategy,
		"database_driver", opts.Config.Database.Driver,
	)
	return runner.Run(ctx, opts.shutdownTimeout(), opts.Logger)
}
