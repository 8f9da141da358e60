package service

import "github.com/couponflow/internal/apperr"

// 服务层错误
var (
	ErrUserIDRequired       = apperr.New(apperr.KindValidation, "user_id_required", "user id is required")
	ErrCouponIDRequired     = apperr.New(apperr.KindValidation, "coupon_id_required", "coupon id is required")
	ErrRequestIDRequired    = apperr.New(apperr.KindValidation, "request_id_required", "request id is required")
	ErrOrderItemsRequired   = apperr.New(apperr.KindValidation, "order_items_required", "order items are required")
	ErrOrderItemInvalid     = apperr.New(apperr.KindValidation, "order_item_invalid", "order item product and quantity must be positive")
	ErrPointsInvalid        = apperr.New(apperr.KindValidation, "points_invalid", "points must not be negative")
	ErrPointsExceedAmount   = apperr.New(apperr.KindValidation, "points_exceed_amount", "points discount exceeds payable amount")
	ErrCouponUserMismatch   = apperr.New(apperr.KindValidation, "coupon_user_mismatch", "coupon does not belong to user")
	ErrCouponNotFound       = apperr.New(apperr.KindNotFound, "coupon_not_found", "coupon not found")
	ErrCouponUserNotFound   = apperr.New(apperr.KindNotFound, "coupon_user_not_found", "issued coupon not found")
	ErrProductNotFound      = apperr.New(apperr.KindNotFound, "product_not_found", "product not found")
	ErrOrderNotFound        = apperr.New(apperr.KindNotFound, "order_not_found", "order not found")
	ErrPointAccountNotFound = apperr.New(apperr.KindNotFound, "point_account_not_found", "point account not found")
	ErrIssueUnavailable     = apperr.New(apperr.KindInfrastructure, "coupon_issue_unavailable", "coupon issuance temporarily unavailable")
)

// wrapInfra 包装基础设施错误，保留底层原因
func wrapInfra(code string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindInfrastructure, code, err)
}
