package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/couponflow/internal/cache"
	"github.com/couponflow/internal/config"
	adminhandlers "github.com/couponflow/internal/http/handlers/admin"
	publichandlers "github.com/couponflow/internal/http/handlers/public"
	"github.com/couponflow/internal/http/response"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cf"
	}
	issueRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:coupon_issue", redisPrefix),
		WindowSeconds: cfg.RateLimit.IssueWindowSeconds,
		MaxRequests:   cfg.RateLimit.IssueMaxRequests,
	}

	// 中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 领券
		apiV1.POST("/coupons/:id/issue", RateLimitMiddleware(cache.Client(), issueRule, KeyByJSONField("user_id")), publicHandler.IssueCoupon)
		apiV1.GET("/coupons/issue/:request_id", publicHandler.GetIssueOutcome)
		apiV1.GET("/coupons/:id", publicHandler.GetCoupon)

		// 结算
		apiV1.POST("/checkout", publicHandler.Checkout)
		apiV1.POST("/orders/:id/cancel", publicHandler.CancelOrder)
		apiV1.GET("/points/:user_id", publicHandler.GetPointAccount)

		// 管理接口（鉴权由网关负责）
		admin := apiV1.Group("/admin")
		{
			admin.POST("/coupons", adminHandler.CreateCoupon)
			admin.POST("/coupons/warmup", adminHandler.WarmUpCoupons)
			admin.POST("/coupons/:id/disable", adminHandler.DisableCoupon)
			admin.GET("/coupons/:id/users", adminHandler.ListCouponUsers)
			admin.POST("/coupon-users/:id/revoke", adminHandler.RevokeCouponUser)
			admin.POST("/points/:user_id/adjust", adminHandler.AdjustPoints)
		}
	}

	// 健康检查
	r.GET("/healthz", func(ctx *gin.Context) {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := c.Ping(pingCtx); err != nil {
			logger.Warnw("health_check_failed", "error", err)
			ctx.JSON(http.StatusServiceUnavailable, response.Response{
				StatusCode: response.CodeServiceUnavailable,
				Msg:        err.Error(),
			})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
