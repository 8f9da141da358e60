package models

import (
	"errors"
	"testing"
	"time"
)

func TestCouponUserUseAndCancel(t *testing.T) {
	now := time.Now()
	cu := &CouponUser{ID: 9, CouponID: 1, UserID: 2, IssuedAt: now, ExpireDate: now.Add(time.Hour)}

	if err := cu.Use(77, now); err != nil {
		t.Fatalf("use failed: %v", err)
	}
	if !cu.IsUsed || cu.UsedAt == nil || cu.OrderID == nil || *cu.OrderID != 77 {
		t.Fatalf("used coupon must carry usedAt and orderId: %+v", cu)
	}
	if err := cu.Use(78, now); !errors.Is(err, ErrCouponUserAlreadyUsed) {
		t.Fatalf("expected already used, got %v", err)
	}

	if err := cu.CancelUsage(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cu.IsUsed || cu.UsedAt != nil || cu.OrderID != nil {
		t.Fatalf("cancel must clear usage: %+v", cu)
	}
	if err := cu.CancelUsage(); !errors.Is(err, ErrCouponUserNotUsed) {
		t.Fatalf("expected not used, got %v", err)
	}
}

func TestCouponUserUseExpired(t *testing.T) {
	now := time.Now()
	cu := &CouponUser{ExpireDate: now.Add(-time.Second)}
	if err := cu.Use(1, now); !errors.Is(err, ErrCouponUserExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if cu.IsUsed {
		t.Fatalf("failed use must not mutate")
	}
}

func TestCouponUserRevoke(t *testing.T) {
	now := time.Now()
	cu := &CouponUser{ExpireDate: now.Add(time.Hour)}
	if err := cu.Revoke(now); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := cu.Use(1, now); !errors.Is(err, ErrCouponUserRevoked) {
		t.Fatalf("revoked coupon must not be usable, got %v", err)
	}
	if err := cu.Revoke(now); !errors.Is(err, ErrCouponUserRevoked) {
		t.Fatalf("expected revoked, got %v", err)
	}

	used := &CouponUser{ExpireDate: now.Add(time.Hour)}
	_ = used.Use(3, now)
	if err := used.Revoke(now); !errors.Is(err, ErrCouponUserAlreadyUsed) {
		t.Fatalf("used coupon must not be revoked, got %v", err)
	}
}

func TestPointAccountDeduct(t *testing.T) {
	account := &PointAccount{UserID: 1, Balance: 100}
	if err := account.Deduct(40); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if account.Balance != 60 {
		t.Fatalf("unexpected balance %d", account.Balance)
	}
	if err := account.Deduct(61); !errors.Is(err, ErrPointInsufficient) {
		t.Fatalf("expected insufficient, got %v", err)
	}
	if err := account.Deduct(0); !errors.Is(err, ErrPointAmountInvalid) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestProductDecreaseStock(t *testing.T) {
	product := &Product{Stock: 2, IsActive: true}
	if err := product.DecreaseStock(3); !errors.Is(err, ErrProductStockInsufficient) {
		t.Fatalf("expected insufficient, got %v", err)
	}
	if err := product.DecreaseStock(2); err != nil {
		t.Fatalf("decrease failed: %v", err)
	}
	product.IsActive = false
	if err := product.DecreaseStock(1); !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
}
