package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bazaar-next/internal/config"

	"go.uber.org/zap"
)

// Mode 进程角色：api 只处理 HTTP，worker 只消费分单任务，all 两者兼有
type Mode string

const (
	ModeAll    Mode = "all"
	ModeAPI    Mode = "api"
	ModeWorker Mode = "worker"
)

// ParseMode 解析命令行传入的模式，空串视为 all
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeAll, nil
	case ModeAll, ModeAPI, ModeWorker:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown mode: %s", raw)
	}
}

// ServesAPI 是否启动 HTTP 服务
func (m Mode) ServesAPI() bool { return m == ModeAll || m == ModeAPI }

// RunsWorker 是否启动分单消费或补偿扫描
func (m Mode) RunsWorker() bool { return m == ModeAll || m == ModeWorker }

// Options 应用启动选项
type Options struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Signals []os.Signal
	Mode    Mode
}

func (o Options) shutdownTimeout() time.Duration {
	if o.Config != nil && o.Config.Server.ShutdownTimeoutSeconds > 0 {
		return time.Duration(o.Config.Server.ShutdownTimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

func signalContext(signals []os.Signal) (context.Context, context.CancelFunc) {
	if len(signals) == 0 {
		return context.WithCancel(context.Background())
	}
	return signal.NotifyContext(context.Background(), signals...)
}
