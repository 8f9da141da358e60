package app

import (
	"context"
	"errors"

	"github.com/couponflow/internal/config"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/provider"
	"github.com/couponflow/internal/router"
	"github.com/couponflow/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	switch mode {
	case ModeAll, ModeAPI, ModeConsumer, ModeWorker:
	default:
		return nil, errors.New("unknown mode: " + mode)
	}

	container := provider.NewContainer(cfg)
	services, err := buildServices(cfg, mode, container)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	if len(services) == 0 {
		_ = container.Close()
		return nil, errors.New("no services initialized (check mode and config)")
	}

	// 准入计数丢失（如 Redis 重启）后从数据库补齐，已有计数不覆盖
	if cfg.CouponIssue.WarmUpOnStart && (runsAPI(mode) || runsConsumer(mode)) {
		if warmed, err := container.CouponStockWarmer.WarmUpMissing(context.Background()); err != nil {
			logger.Warnw("app_coupon_warm_up_failed", "error", err)
		} else {
			logger.Infow("app_coupon_warm_up_done", "coupons", warmed)
		}
	}

	runner := NewRunner(services...)
	runner.OnShutdown(container.Close)
	return runner, nil
}

func buildServices(cfg *config.Config, mode string, container *provider.Container) ([]Service, error) {
	var services []Service

	if runsAPI(mode) {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	if runsConsumer(mode) {
		issueConsumer, err := worker.NewIssueConsumer(container.IssueSubscriber, container.CouponIssueProcessor.HandleMessage)
		if err != nil {
			return nil, err
		}
		services = append(services, issueConsumer)
	}

	if runsWorker(mode) {
		if !cfg.Queue.Enabled {
			if mode == ModeWorker {
				return nil, errors.New("worker mode requires queue.enabled")
			}
			logger.Warnw("app_worker_skipped", "reason", "queue_disabled")
		} else {
			workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		}
	}
	return services, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
