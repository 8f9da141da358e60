package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/lock"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/repository"
	"github.com/couponflow/internal/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PointsPerUnit 每 1 元可抵扣所需积分
const PointsPerUnit int64 = 100

// CheckoutService 结算与取消订单
// 锁集合覆盖用户积分、全部商品以及所用用户券，锁内再走乐观重试
type CheckoutService struct {
	coordinator    *lock.Coordinator
	executor       *retry.Executor
	productRepo    repository.ProductRepository
	orderRepo      repository.OrderRepository
	couponRepo     repository.CouponRepository
	couponUserRepo repository.CouponUserRepository
	pointRepo      repository.PointRepository
	now            func() time.Time
}

// CheckoutItem 结算商品项
type CheckoutItem struct {
	ProductID uint
	Quantity  int
}

// CheckoutInput 结算输入
type CheckoutInput struct {
	UserID       uint
	Items        []CheckoutItem
	CouponUserID *uint
	Points       int64
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	coordinator *lock.Coordinator,
	executor *retry.Executor,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	couponRepo repository.CouponRepository,
	couponUserRepo repository.CouponUserRepository,
	pointRepo repository.PointRepository,
) *CheckoutService {
	return &CheckoutService{
		coordinator:    coordinator,
		executor:       executor,
		productRepo:    productRepo,
		orderRepo:      orderRepo,
		couponRepo:     couponRepo,
		couponUserRepo: couponUserRepo,
		pointRepo:      pointRepo,
		now:            time.Now,
	}
}

// Checkout 下单：扣库存、核销优惠券、扣积分、写订单
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == 0 {
		return nil, ErrUserIDRequired
	}
	if input.Points < 0 {
		return nil, ErrPointsInvalid
	}
	items, err := mergeCheckoutItems(input.Items)
	if err != nil {
		return nil, err
	}
	productIDs := make([]uint, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	keys, err := lock.CheckoutResources(input.UserID, productIDs, input.CouponUserID)
	if err != nil {
		return nil, err
	}

	opts := s.coordinator.Options()
	order, err := lock.WithLock(ctx, s.coordinator, keys, opts.Wait, opts.Lease, func(ctx context.Context) (*models.Order, error) {
		return retry.Do(ctx, s.executor, func(ctx context.Context, tx *gorm.DB) (*models.Order, error) {
			return s.checkoutAttempt(tx, input, items)
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("checkout_order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"pay_amount", order.PayAmount.String(),
	)
	return order, nil
}

func (s *CheckoutService) checkoutAttempt(tx *gorm.DB, input CheckoutInput, items []CheckoutItem) (*models.Order, error) {
	now := s.now()
	productRepo := s.productRepo.WithTx(tx)
	orderRepo := s.orderRepo.WithTx(tx)

	productIDs := make([]uint, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := productRepo.ListByIDsForUpdate(productIDs)
	if err != nil {
		return nil, err
	}
	productMap := make(map[uint]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	subtotal := models.ZeroMoney()
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		product, ok := productMap[item.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if err := product.DecreaseStock(item.Quantity); err != nil {
			return nil, err
		}
		if err := productRepo.UpdateStockWithVersion(product); err != nil {
			return nil, err
		}
		total := product.Price.MulInt(int64(item.Quantity))
		subtotal = subtotal.Add(total)
		orderItems = append(orderItems, models.OrderItem{
			ProductID:  product.ID,
			UnitPrice:  product.Price,
			Quantity:   item.Quantity,
			TotalPrice: total,
		})
	}

	var couponUser *models.CouponUser
	couponDiscount := models.ZeroMoney()
	if input.CouponUserID != nil {
		couponUser, couponDiscount, err = s.resolveCoupon(tx, input.UserID, *input.CouponUserID, subtotal, now)
		if err != nil {
			return nil, err
		}
	}

	payable := subtotal.Sub(couponDiscount).ClampZero()
	pointsDiscount := models.ZeroMoney()
	if input.Points > 0 {
		pointsDiscount = pointsToMoney(input.Points)
		if pointsDiscount.GreaterThan(payable.Decimal) {
			return nil, ErrPointsExceedAmount
		}
		pointRepo := s.pointRepo.WithTx(tx)
		account, err := pointRepo.GetByUserID(input.UserID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, ErrPointAccountNotFound
		}
		if err := account.Deduct(input.Points); err != nil {
			return nil, err
		}
		if err := pointRepo.UpdateWithVersion(account); err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		OrderNo:        generateOrderNo(now),
		UserID:         input.UserID,
		Status:         constants.OrderStatusCreated,
		SubtotalAmount: subtotal,
		CouponDiscount: couponDiscount,
		PointsUsed:     input.Points,
		PointsDiscount: pointsDiscount,
		PayAmount:      payable.Sub(pointsDiscount).ClampZero(),
		CouponUserID:   input.CouponUserID,
		Items:          orderItems,
	}
	if err := orderRepo.Create(order); err != nil {
		return nil, err
	}
	if couponUser != nil {
		if err := couponUser.Use(order.ID, now); err != nil {
			return nil, err
		}
		if err := s.couponUserRepo.WithTx(tx).Update(couponUser); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// resolveCoupon 校验用户券归属与可用性，抵扣额不超过商品小计
func (s *CheckoutService) resolveCoupon(tx *gorm.DB, userID, couponUserID uint, subtotal models.Money, now time.Time) (*models.CouponUser, models.Money, error) {
	couponUser, err := s.couponUserRepo.WithTx(tx).GetByIDForUpdate(couponUserID)
	if err != nil {
		return nil, models.Money{}, err
	}
	if couponUser == nil {
		return nil, models.Money{}, ErrCouponUserNotFound
	}
	if couponUser.UserID != userID {
		return nil, models.Money{}, ErrCouponUserMismatch
	}
	if couponUser.IsUsed {
		return nil, models.Money{}, models.ErrCouponUserAlreadyUsed
	}
	if couponUser.RevokedAt != nil {
		return nil, models.Money{}, models.ErrCouponUserRevoked
	}
	if now.After(couponUser.ExpireDate) {
		return nil, models.Money{}, models.ErrCouponUserExpired
	}
	coupon, err := s.couponRepo.WithTx(tx).GetByID(couponUser.CouponID)
	if err != nil {
		return nil, models.Money{}, err
	}
	if coupon == nil {
		return nil, models.Money{}, ErrCouponNotFound
	}
	discount := coupon.DiscountAmount
	if discount.GreaterThan(subtotal.Decimal) {
		discount = subtotal
	}
	return couponUser, discount, nil
}

// CancelOrder 取消订单并回补库存、积分、优惠券
func (s *CheckoutService) CancelOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	if userID == 0 {
		return nil, ErrUserIDRequired
	}
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	// 锁集合依赖订单内容，先无锁读取一次，锁内再校验
	snapshot, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if snapshot.Status == constants.OrderStatusCanceled {
		return nil, models.ErrOrderAlreadyCanceled
	}
	keys, err := lock.CheckoutResources(userID, snapshot.ProductIDs(), snapshot.CouponUserID)
	if err != nil {
		return nil, err
	}

	opts := s.coordinator.Options()
	order, err := lock.WithLock(ctx, s.coordinator, keys, opts.Wait, opts.Lease, func(ctx context.Context) (*models.Order, error) {
		return retry.Do(ctx, s.executor, func(ctx context.Context, tx *gorm.DB) (*models.Order, error) {
			return s.cancelAttempt(tx, userID, orderID)
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("checkout_order_canceled", "order_id", order.ID, "user_id", userID)
	return order, nil
}

func (s *CheckoutService) cancelAttempt(tx *gorm.DB, userID, orderID uint) (*models.Order, error) {
	orderRepo := s.orderRepo.WithTx(tx)
	order, err := orderRepo.GetByIDForUpdate(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusCanceled {
		return nil, models.ErrOrderAlreadyCanceled
	}

	quantities := make(map[uint]int, len(order.Items))
	for _, item := range order.Items {
		quantities[item.ProductID] += item.Quantity
	}
	productIDs := make([]uint, 0, len(quantities))
	for id := range quantities {
		productIDs = append(productIDs, id)
	}
	slices.Sort(productIDs)
	productRepo := s.productRepo.WithTx(tx)
	products, err := productRepo.ListByIDsForUpdate(productIDs)
	if err != nil {
		return nil, err
	}
	for i := range products {
		product := &products[i]
		if err := product.IncreaseStock(quantities[product.ID]); err != nil {
			return nil, err
		}
		if err := productRepo.UpdateStockWithVersion(product); err != nil {
			return nil, err
		}
	}

	if order.CouponUserID != nil {
		couponUserRepo := s.couponUserRepo.WithTx(tx)
		couponUser, err := couponUserRepo.GetByIDForUpdate(*order.CouponUserID)
		if err != nil {
			return nil, err
		}
		if couponUser != nil && couponUser.IsUsed {
			if err := couponUser.CancelUsage(); err != nil {
				return nil, err
			}
			if err := couponUserRepo.Update(couponUser); err != nil {
				return nil, err
			}
		}
	}

	if order.PointsUsed > 0 {
		pointRepo := s.pointRepo.WithTx(tx)
		account, err := pointRepo.GetByUserID(userID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, ErrPointAccountNotFound
		}
		if err := account.Credit(order.PointsUsed); err != nil {
			return nil, err
		}
		if err := pointRepo.UpdateWithVersion(account); err != nil {
			return nil, err
		}
	}

	canceledAt := s.now()
	order.Status = constants.OrderStatusCanceled
	order.CanceledAt = &canceledAt
	if err := orderRepo.Update(order); err != nil {
		return nil, err
	}
	return order, nil
}

// mergeCheckoutItems 合并重复商品并按商品ID排序
func mergeCheckoutItems(items []CheckoutItem) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, ErrOrderItemsRequired
	}
	merged := make(map[uint]int, len(items))
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, ErrOrderItemInvalid
		}
		merged[item.ProductID] += item.Quantity
	}
	result := make([]CheckoutItem, 0, len(merged))
	for productID, quantity := range merged {
		result = append(result, CheckoutItem{ProductID: productID, Quantity: quantity})
	}
	slices.SortFunc(result, func(a, b CheckoutItem) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return result, nil
}

func pointsToMoney(points int64) models.Money {
	return models.NewMoneyFromDecimal(decimal.NewFromInt(points).Div(decimal.NewFromInt(PointsPerUnit)))
}

func generateOrderNo(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("CF%s%s", now.Format("20060102150405"), suffix)
}
