package public

import (
	"github.com/couponflow/internal/http/response"
	"github.com/couponflow/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutItemRequest 结算商品项
type CheckoutItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	UserID       uint                  `json:"user_id" binding:"required"`
	Items        []CheckoutItemRequest `json:"items" binding:"required"`
	CouponUserID *uint                 `json:"coupon_user_id"`
	Points       int64                 `json:"points"`
}

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// Checkout 下单结算
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.CheckoutService.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID:       req.UserID,
		Items:        items,
		CouponUserID: req.CouponUserID,
		Points:       req.Points,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	order, err := h.CheckoutService.CancelOrder(c.Request.Context(), req.UserID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// GetPointAccount 查询积分账户
func (h *Handler) GetPointAccount(c *gin.Context) {
	userID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	account, err := h.PointService.GetAccount(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}
