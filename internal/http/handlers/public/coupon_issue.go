package public

import (
	"strings"

	"github.com/couponflow/internal/http/response"

	"github.com/gin-gonic/gin"
)

// IssueCouponRequest 申请领券请求
type IssueCouponRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// IssueCoupon 领券准入，受理后返回 request_id 供轮询
func (h *Handler) IssueCoupon(c *gin.Context) {
	couponID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req IssueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.CouponIssueService.Admit(c.Request.Context(), req.UserID, couponID)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Admitted {
		response.Accepted(c, result)
		return
	}
	response.SuccessWithMsg(c, strings.ToLower(result.Reason), result)
}

// GetIssueOutcome 查询领券结果
func (h *Handler) GetIssueOutcome(c *gin.Context) {
	requestID := strings.TrimSpace(c.Param("request_id"))
	outcome, err := h.CouponIssueService.GetOutcome(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, err)
		return
	}
	if outcome == nil {
		response.NotFound(c, "outcome not recorded")
		return
	}
	response.Success(c, outcome)
}

// GetCoupon 查询优惠券剩余数量与状态
func (h *Handler) GetCoupon(c *gin.Context) {
	couponID, ok := paramID(c, "id")
	if !ok {
		return
	}
	coupon, err := h.CouponQueryService.Get(c.Request.Context(), couponID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}
