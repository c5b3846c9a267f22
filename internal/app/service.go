package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service 长驻组件：HTTP、asynq 消费者、补偿扫描
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type serviceExit struct {
	name string
	err  error
}

// Runner 并行运行一组 Service，任一退出即整体收尾
type Runner struct {
	services []Service
	closers  []func() error
}

// NewRunner 创建服务运行器，nil 会被忽略
func NewRunner(services ...Service) *Runner {
	r := &Runner{}
	for _, svc := range services {
		if svc != nil {
			r.services = append(r.services, svc)
		}
	}
	return r
}

// OnShutdown 注册资源释放函数，在全部服务停止后按注册逆序执行
func (r *Runner) OnShutdown(fn func() error) {
	if fn != nil {
		r.closers = append(r.closers, fn)
	}
}

// Run 阻塞到 ctx 结束或某个服务退出。
// ctx 取消属于正常关闭，返回 nil；服务自身出错时返回该错误。
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, log *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go func(svc Service) {
			log.Infow("service_start", "service", svc.Name())
			exits <- serviceExit{name: svc.Name(), err: svc.Start(runCtx)}
		}(svc)
	}

	var runErr error
	select {
	case <-runCtx.Done():
		log.Infow("service_shutdown_requested", "cause", context.Cause(runCtx))
	case exit := <-exits:
		log.Infow("service_exit", "service", exit.name, "error", exit.err)
		if exit.err != nil {
			runErr = fmt.Errorf("%s: %w", exit.name, exit.err)
		}
	}
	cancel()

	r.shutdown(stopTimeout, log)
	if runErr != nil {
		log.Errorw("service_run_failed", "error", runErr)
	}
	return runErr
}

// shutdown 先逆序停服务，再逆序释放资源
func (r *Runner) shutdown(timeout time.Duration, log *zap.SugaredLogger) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil {
			log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Errorw("service_close_failed", "error", err)
		}
	}
}
