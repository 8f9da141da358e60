package shared

import (
	"github.com/couponflow/internal/apperr"
	"github.com/couponflow/internal/http/response"
	"github.com/couponflow/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 与 trace 字段的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	log := logger.S()
	if c.Request != nil {
		log = logger.Ctx(c.Request.Context())
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return log.With("request_id", id)
		}
	}
	return log
}

// RespondError 按错误类别返回响应；基础设施与未知错误记录 error 日志，其余记录 debug。
func RespondError(c *gin.Context, err error) {
	appErr := response.FromError(err)
	kind := apperr.KindOf(err)
	if kind == apperr.KindInfrastructure || kind == apperr.KindUnknown {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"error_code", appErr.ErrorCode,
			"error", err,
		)
	} else {
		RequestLog(c).Debugw("handler_rejected",
			"code", appErr.Code,
			"error_code", appErr.ErrorCode,
			"error", err,
		)
	}
	response.AppErr(c, appErr)
}

// RespondBadRequest 请求格式错误
func RespondBadRequest(c *gin.Context, err error) {
	if err != nil {
		RequestLog(c).Debugw("handler_bad_request", "error", err)
	}
	response.ErrorWithData(c, response.CodeBadRequest, "bad request", gin.H{"error_code": "bad_request"})
}
