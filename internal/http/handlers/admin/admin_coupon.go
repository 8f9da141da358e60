package admin

import (
	"strconv"
	"time"

	"github.com/couponflow/internal/http/response"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCouponRequest 创建优惠券请求
type CreateCouponRequest struct {
	Name           string       `json:"name" binding:"required"`
	TotalQuantity  int          `json:"total_quantity" binding:"required"`
	DiscountAmount models.Money `json:"discount_amount"`
	StartDate      time.Time    `json:"start_date" binding:"required"`
	EndDate        time.Time    `json:"end_date" binding:"required"`
}

// AdjustPointsRequest 调整积分请求
type AdjustPointsRequest struct {
	Delta int64 `json:"delta" binding:"required"`
}

// CreateCoupon 创建优惠券并预热准入名额
func (h *Handler) CreateCoupon(c *gin.Context) {
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	coupon, err := h.CouponAdminService.Create(c.Request.Context(), service.CreateCouponInput{
		Name:           req.Name,
		TotalQuantity:  req.TotalQuantity,
		DiscountAmount: req.DiscountAmount,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}

// DisableCoupon 停用优惠券
func (h *Handler) DisableCoupon(c *gin.Context) {
	couponID, ok := paramID(c, "id")
	if !ok {
		return
	}
	coupon, err := h.CouponAdminService.Disable(c.Request.Context(), couponID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}

// RevokeCouponUser 撤销用户券
func (h *Handler) RevokeCouponUser(c *gin.Context) {
	couponUserID, ok := paramID(c, "id")
	if !ok {
		return
	}
	couponUser, err := h.CouponAdminService.RevokeCouponUser(c.Request.Context(), couponUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, couponUser)
}

// ListCouponUsers 分页查询发放记录
func (h *Handler) ListCouponUsers(c *gin.Context) {
	couponID, ok := paramID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	couponUsers, total, err := h.CouponAdminService.ListCouponUsers(couponID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"items":     couponUsers,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// WarmUpCoupons 重新预热准入计数
func (h *Handler) WarmUpCoupons(c *gin.Context) {
	warmed, err := h.CouponAdminService.WarmUp(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"warmed": warmed})
}

// AdjustPoints 调整用户积分
func (h *Handler) AdjustPoints(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	var req AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	account, err := h.PointService.Adjust(c.Request.Context(), userID, req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}
