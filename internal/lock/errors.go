package lock

import (
	"fmt"
	"time"

	"github.com/couponflow/internal/apperr"
)

var (
	ErrUserRequired       = apperr.New(apperr.KindValidation, "lock_user_required", "user id is required")
	ErrProductsRequired   = apperr.New(apperr.KindValidation, "lock_products_required", "at least one product id is required")
	ErrProductInvalid     = apperr.New(apperr.KindValidation, "lock_product_invalid", "product id must be positive")
	ErrCouponUserInvalid  = apperr.New(apperr.KindValidation, "lock_coupon_user_invalid", "coupon user id must be positive")
	ErrDomainInvalid      = apperr.New(apperr.KindValidation, "lock_domain_invalid", "unknown lock domain")
	ErrLockAcquireTimeout = apperr.New(apperr.KindInfrastructure, "lock_acquire_timeout", "lock acquisition timed out")
	ErrLockNotHeld        = apperr.New(apperr.KindState, "lock_not_held", "lock is not held by this owner")
)

// AcquisitionError 在等待时间内未能拿到某个 key
type AcquisitionError struct {
	Key    string
	Waited time.Duration
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire lock %s failed after %s: %v", e.Key, e.Waited, e.Err)
	}
	return fmt.Sprintf("acquire lock %s timed out after %s", e.Key, e.Waited)
}

// Unwrap 超时返回 ErrLockAcquireTimeout，provider 故障返回原始错误
func (e *AcquisitionError) Unwrap() error {
	if e.Err != nil {
		return apperr.Wrap(apperr.KindInfrastructure, "lock_provider_failed", e.Err)
	}
	return ErrLockAcquireTimeout
}
