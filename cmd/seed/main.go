package main

import (
	"time"

	"github.com/couponflow/internal/config"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/logger"
	"github.com/couponflow/internal/models"

	"github.com/shopspring/decimal"
)

// 演示数据：准入计数在服务启动预热时按库存生成
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	now := time.Now()
	coupons := []models.Coupon{
		{
			Name:           "新人立减 5 元",
			TotalQuantity:  100,
			DiscountAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(5)),
			StartDate:      now.Add(-time.Hour),
			EndDate:        now.AddDate(0, 1, 0),
		},
		{
			Name:           "限量秒杀 20 元",
			TotalQuantity:  10,
			DiscountAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			StartDate:      now.Add(-time.Hour),
			EndDate:        now.AddDate(0, 0, 1),
		},
	}
	for _, coupon := range coupons {
		var count int64
		if err := models.DB.Model(&models.Coupon{}).Where("name = ?", coupon.Name).Count(&count).Error; err != nil {
			stdLog.Printf("Failed to check coupon %s: %v", coupon.Name, err)
			continue
		}
		if count > 0 {
			stdLog.Printf("Coupon already exists: %s", coupon.Name)
			continue
		}
		coupon.AvailableQuantity = coupon.TotalQuantity
		coupon.Status = constants.CouponStatusActive
		coupon.IsActive = true
		if err := coupon.Validate(); err != nil {
			stdLog.Printf("Invalid coupon %s: %v", coupon.Name, err)
			continue
		}
		if err := models.DB.Create(&coupon).Error; err != nil {
			stdLog.Printf("Failed to create coupon %s: %v", coupon.Name, err)
			continue
		}
		stdLog.Printf("Created coupon: %s (id=%d)", coupon.Name, coupon.ID)
	}

	products := []models.Product{
		{Name: "Wireless Headphones", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(99.99)), Stock: 50, IsActive: true},
		{Name: "Smart Watch", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(199.99)), Stock: 20, IsActive: true},
		{Name: "Power Bank", Price: models.NewMoneyFromDecimal(decimal.NewFromFloat(49.99)), Stock: 5, IsActive: true},
	}
	for _, product := range products {
		var count int64
		if err := models.DB.Model(&models.Product{}).Where("name = ?", product.Name).Count(&count).Error; err != nil {
			stdLog.Printf("Failed to check product %s: %v", product.Name, err)
			continue
		}
		if count > 0 {
			stdLog.Printf("Product already exists: %s", product.Name)
			continue
		}
		if err := models.DB.Create(&product).Error; err != nil {
			stdLog.Printf("Failed to create product %s: %v", product.Name, err)
			continue
		}
		stdLog.Printf("Created product: %s (id=%d)", product.Name, product.ID)
	}

	for userID := uint(1); userID <= 3; userID++ {
		account := models.PointAccount{UserID: userID, Balance: 1000}
		result := models.DB.Where("user_id = ?", userID).FirstOrCreate(&account)
		if result.Error != nil {
			stdLog.Printf("Failed to create point account for user %d: %v", userID, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			stdLog.Printf("Created point account: user=%d balance=%d", userID, account.Balance)
		}
	}

	stdLog.Printf("Seed completed")
}
