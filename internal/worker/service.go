package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepGrace    = 5 * time.Minute
	sweepBatchSize       = 50
)

var (
	errQueueDisabled = errors.New("queue disabled")
	errNoDispatcher  = errors.New("consumer has no fan-out dispatcher")
)

// sweeper 周期性补发已结算但仍缺供应商子订单的订单。
// run 阻塞到 ctx 结束或 halt 被调用。
type sweeper struct {
	consumer *Consumer
	interval time.Duration
	grace    time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newSweeper(cfg *config.QueueConfig, consumer *Consumer) (*sweeper, error) {
	if consumer == nil || consumer.dispatcher == nil {
		return nil, errNoDispatcher
	}
	s := &sweeper{
		consumer: consumer,
		interval: defaultSweepInterval,
		grace:    defaultSweepGrace,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if cfg != nil {
		if cfg.SweepIntervalSeconds > 0 {
			s.interval = time.Duration(cfg.SweepIntervalSeconds) * time.Second
		}
		if cfg.SweepGraceSeconds > 0 {
			s.grace = time.Duration(cfg.SweepGraceSeconds) * time.Second
		}
	}
	return s, nil
}

func (s *sweeper) run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("sweeper already started")
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *sweeper) sweepOnce(ctx context.Context) {
	result, err := s.consumer.dispatcher.SweepPending(ctx, s.grace, sweepBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnw("worker_fanout_sweep_failed", "error", err)
		}
		return
	}
	if result != nil && result.Scanned > 0 {
		logger.Infow("worker_fanout_sweep_done", "scanned", result.Scanned, "failed", result.Failed)
	}
}

func (s *sweeper) halt(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Service asynq 消费端，同时跑漏分单补偿扫描
type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sweep  *sweeper
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errQueueDisabled
	}
	sweep, err := newSweeper(cfg, consumer)
	if err != nil {
		return nil, err
	}
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		server: asynq.NewServer(queue.RedisOpt(cfg), queue.ServerConfig(cfg)),
		mux:    mux,
		sweep:  sweep,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string { return "worker" }

// Start 启动消费者后阻塞在补偿扫描上；信号由外层 Runner 统一处理
func (s *Service) Start(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	return s.sweep.run(ctx)
}

// Stop 先停扫描，再等待进行中的任务处理完
func (s *Service) Stop(ctx context.Context) error {
	err := s.sweep.halt(ctx)
	s.server.Shutdown()
	return err
}

// SweepService 未启用队列时单独运行漏分单补偿扫描
type SweepService struct {
	*sweeper
}

// NewSweepService 创建补偿扫描服务
func NewSweepService(cfg *config.QueueConfig, consumer *Consumer) (*SweepService, error) {
	sweep, err := newSweeper(cfg, consumer)
	if err != nil {
		return nil, err
	}
	return &SweepService{sweeper: sweep}, nil
}

// Name 服务名称
func (s *SweepService) Name() string { return "fanout-sweep" }

// Start 阻塞运行直到 ctx 结束或 Stop 被调用
func (s *SweepService) Start(ctx context.Context) error { return s.run(ctx) }

// Stop 停止扫描并等待循环退出
func (s *SweepService) Stop(ctx context.Context) error { return s.halt(ctx) }
