package app

import (
	"os"
	"time"

	"github.com/couponflow/internal/config"
	"github.com/couponflow/internal/logger"

	"go.uber.org/zap"
)

// 运行模式：api 只提供 HTTP，consumer 只消费领券日志，worker 只跑重投递任务
const (
	ModeAll      = "all"
	ModeAPI      = "api"
	ModeConsumer = "consumer"
	ModeWorker   = "worker"
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

func runsAPI(mode string) bool      { return mode == ModeAll || mode == ModeAPI }
func runsConsumer(mode string) bool { return mode == ModeAll || mode == ModeConsumer }
func runsWorker(mode string) bool   { return mode == ModeAll || mode == ModeWorker }
