package models

import "github.com/couponflow/internal/apperr"

// 聚合根领域错误
var (
	ErrVersionConflict = apperr.New(apperr.KindConflict, "version_conflict", "record version changed since read")

	ErrCouponOutOfStock      = apperr.New(apperr.KindCapacity, "coupon_out_of_stock", "coupon out of stock")
	ErrCouponQuantityFull    = apperr.New(apperr.KindState, "coupon_quantity_full", "coupon available quantity already at total")
	ErrCouponQuantityInvalid = apperr.New(apperr.KindValidation, "coupon_quantity_invalid", "coupon quantity invalid")
	ErrCouponPeriodInvalid   = apperr.New(apperr.KindValidation, "coupon_period_invalid", "coupon start date must be before end date")
	ErrCouponInactive        = apperr.New(apperr.KindState, "coupon_inactive", "coupon inactive")
	ErrCouponNotStarted      = apperr.New(apperr.KindState, "coupon_not_started", "coupon not started")
	ErrCouponExpired         = apperr.New(apperr.KindState, "coupon_expired", "coupon expired")
	ErrCouponDisabled        = apperr.New(apperr.KindState, "coupon_disabled", "coupon disabled")
	ErrCouponStatusInvalid   = apperr.New(apperr.KindState, "coupon_status_invalid", "coupon status invalid")

	ErrCouponUserAlreadyUsed = apperr.New(apperr.KindState, "coupon_user_already_used", "coupon already used")
	ErrCouponUserExpired     = apperr.New(apperr.KindState, "coupon_user_expired", "issued coupon expired")
	ErrCouponUserNotUsed     = apperr.New(apperr.KindState, "coupon_user_not_used", "coupon not used")
	ErrCouponUserRevoked     = apperr.New(apperr.KindState, "coupon_user_revoked", "issued coupon revoked")

	ErrPointInsufficient  = apperr.New(apperr.KindCapacity, "point_insufficient", "point balance insufficient")
	ErrPointAmountInvalid = apperr.New(apperr.KindValidation, "point_amount_invalid", "point amount invalid")

	ErrProductStockInsufficient = apperr.New(apperr.KindCapacity, "product_stock_insufficient", "product stock insufficient")
	ErrProductQuantityInvalid   = apperr.New(apperr.KindValidation, "product_quantity_invalid", "product quantity invalid")
	ErrProductInactive          = apperr.New(apperr.KindState, "product_inactive", "product inactive")

	ErrOrderAlreadyCanceled = apperr.New(apperr.KindState, "order_already_canceled", "order already canceled")
)
