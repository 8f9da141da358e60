package lock

import (
	"fmt"
	"slices"

	"github.com/couponflow/internal/constants"
)

// Domain 锁资源域
type Domain string

const (
	DomainUserPoint  Domain = constants.LockDomainUserPoint
	DomainProduct    Domain = constants.LockDomainProduct
	DomainCouponUser Domain = constants.LockDomainCouponUser
)

func (d Domain) prefix() (string, bool) {
	switch d {
	case DomainUserPoint:
		return constants.LockPrefixUserPoint, true
	case DomainProduct:
		return constants.LockPrefixProduct, true
	case DomainCouponUser:
		return constants.LockPrefixCouponUser, true
	default:
		return "", false
	}
}

// Resource 一个可加锁的共享资源
type Resource struct {
	Domain Domain
	ID     uint
}

// Key 返回资源的锁 key，格式 lock:{prefix}:{id}
func (r Resource) Key() (string, error) {
	prefix, ok := r.Domain.prefix()
	if !ok {
		return "", ErrDomainInvalid
	}
	return fmt.Sprintf("%s:%s:%d", constants.LockKeyPrefix, prefix, r.ID), nil
}

// Canonicalize 去重并按字典序排序，所有调用方以同一全序加锁
func Canonicalize(resources []Resource) ([]string, error) {
	seen := make(map[string]struct{}, len(resources))
	keys := make([]string, 0, len(resources))
	for _, res := range resources {
		key, err := res.Key()
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// CheckoutResources 构建结算/取消订单需要的锁集合
func CheckoutResources(userID uint, productIDs []uint, couponUserID *uint) ([]string, error) {
	if userID == 0 {
		return nil, ErrUserRequired
	}
	if len(productIDs) == 0 {
		return nil, ErrProductsRequired
	}
	resources := make([]Resource, 0, len(productIDs)+2)
	resources = append(resources, Resource{Domain: DomainUserPoint, ID: userID})
	for _, productID := range productIDs {
		if productID == 0 {
			return nil, ErrProductInvalid
		}
		resources = append(resources, Resource{Domain: DomainProduct, ID: productID})
	}
	if couponUserID != nil {
		if *couponUserID == 0 {
			return nil, ErrCouponUserInvalid
		}
		resources = append(resources, Resource{Domain: DomainCouponUser, ID: *couponUserID})
	}
	return Canonicalize(resources)
}

// CouponUserResource 单张用户券的锁 key
func CouponUserResource(couponUserID uint) ([]string, error) {
	if couponUserID == 0 {
		return nil, ErrCouponUserInvalid
	}
	return Canonicalize([]Resource{{Domain: DomainCouponUser, ID: couponUserID}})
}
