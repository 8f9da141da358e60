package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couponflow/internal/config"
	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/models"
	"github.com/couponflow/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var routerTestDBSeq int64

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupRouterTest(t *testing.T) (*gin.Engine, *provider.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), atomic.AddInt64(&routerTestDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		MQ:     config.MQConfig{Driver: constants.MQDriverMemory, Partitions: 2, Buffer: 16},
		Lock:   config.LockConfig{Backend: constants.LockBackendMemory, WaitMS: 1000, LeaseMS: 5000, SpinMS: 1},
		Retry:  config.RetryConfig{MaxAttempts: 3},
		CouponIssue: config.CouponIssueConfig{
			OutcomeTTLSeconds: 60,
		},
	}
	c := provider.NewContainerWithDB(cfg, db)
	t.Cleanup(func() {
		_ = c.Close()
		_ = sqlDB.Close()
	})
	return SetupRouter(cfg, c), c
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
		}
	}
	return w, resp
}

func TestCouponIssueRoutes(t *testing.T) {
	r, _ := setupRouterTest(t)
	now := time.Now().UTC()

	_, created := doJSON(t, r, http.MethodPost, "/api/v1/admin/coupons", gin.H{
		"name":            "新人券",
		"total_quantity":  1,
		"discount_amount": "5.00",
		"start_date":      now.Add(-time.Hour).Format(time.RFC3339),
		"end_date":        now.Add(time.Hour).Format(time.RFC3339),
	})
	if created.StatusCode != 0 {
		t.Fatalf("create coupon failed: %+v", created)
	}
	var coupon models.Coupon
	if err := json.Unmarshal(created.Data, &coupon); err != nil {
		t.Fatalf("decode coupon: %v", err)
	}
	if coupon.Status != constants.CouponStatusActive || coupon.AvailableQuantity != 1 {
		t.Fatalf("unexpected coupon: %+v", coupon)
	}

	path := fmt.Sprintf("/api/v1/coupons/%d/issue", coupon.ID)
	w, admitted := doJSON(t, r, http.MethodPost, path, gin.H{"user_id": 1})
	if w.Code != http.StatusAccepted {
		t.Fatalf("first issue should be accepted, got %d %s", w.Code, w.Body.String())
	}
	var result struct {
		Admitted  bool   `json:"admitted"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(admitted.Data, &result); err != nil {
		t.Fatalf("decode admission: %v", err)
	}
	if !result.Admitted || result.RequestID == "" {
		t.Fatalf("unexpected admission: %+v", result)
	}

	_, dup := doJSON(t, r, http.MethodPost, path, gin.H{"user_id": 1})
	if dup.Msg != "duplicate" {
		t.Fatalf("second issue should be duplicate, got %+v", dup)
	}
	_, sold := doJSON(t, r, http.MethodPost, path, gin.H{"user_id": 2})
	if sold.Msg != "out_of_stock" {
		t.Fatalf("third issue should be out of stock, got %+v", sold)
	}

	_, missing := doJSON(t, r, http.MethodPost, "/api/v1/coupons/9999/issue", gin.H{"user_id": 3})
	if missing.Msg != "not_found" {
		t.Fatalf("unknown coupon should be not_found, got %+v", missing)
	}

	_, bad := doJSON(t, r, http.MethodPost, path, gin.H{})
	if bad.StatusCode != 400 {
		t.Fatalf("missing user_id should be 400, got %+v", bad)
	}

	// 未启动消费者时结果尚未落地
	_, pending := doJSON(t, r, http.MethodGet, "/api/v1/coupons/issue/"+result.RequestID, nil)
	if pending.StatusCode != 404 {
		t.Fatalf("outcome should not be recorded yet, got %+v", pending)
	}

	_, listed := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/admin/coupons/%d/users?page=1", coupon.ID), nil)
	var page struct {
		Total    int64 `json:"total"`
		PageSize int   `json:"page_size"`
	}
	if err := json.Unmarshal(listed.Data, &page); err != nil {
		t.Fatalf("decode coupon users: %v", err)
	}
	if listed.StatusCode != 0 || page.Total != 0 || page.PageSize != 20 {
		t.Fatalf("unexpected coupon users page: %+v %+v", listed, page)
	}

	_, disabled := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/admin/coupons/%d/disable", coupon.ID), nil)
	if disabled.StatusCode != 0 {
		t.Fatalf("disable failed: %+v", disabled)
	}
	_, snapshot := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/coupons/%d", coupon.ID), nil)
	if err := json.Unmarshal(snapshot.Data, &coupon); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if coupon.Status != constants.CouponStatusDisabled {
		t.Fatalf("status want DISABLED got %s", coupon.Status)
	}
}

func TestCheckoutRoutes(t *testing.T) {
	r, c := setupRouterTest(t)

	product := &models.Product{Name: "键盘", Price: models.NewMoneyFromDecimal(decimal.NewFromInt(20)), Stock: 2, IsActive: true}
	if err := c.ProductRepo.Create(product); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	_, adjusted := doJSON(t, r, http.MethodPost, "/api/v1/admin/points/5/adjust", gin.H{"delta": 500})
	if adjusted.StatusCode != 0 {
		t.Fatalf("adjust points failed: %+v", adjusted)
	}

	_, placed := doJSON(t, r, http.MethodPost, "/api/v1/checkout", gin.H{
		"user_id": 5,
		"items":   []gin.H{{"product_id": product.ID, "quantity": 1}},
		"points":  300,
	})
	if placed.StatusCode != 0 {
		t.Fatalf("checkout failed: %+v", placed)
	}
	var order models.Order
	if err := json.Unmarshal(placed.Data, &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.PayAmount.String() != "17.00" {
		t.Fatalf("pay amount want 17.00 got %s", order.PayAmount.String())
	}

	_, account := doJSON(t, r, http.MethodGet, "/api/v1/points/5", nil)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(account.Data, &balance); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if balance.Balance != 200 {
		t.Fatalf("balance want 200 got %d", balance.Balance)
	}

	_, tooMany := doJSON(t, r, http.MethodPost, "/api/v1/checkout", gin.H{
		"user_id": 6,
		"items":   []gin.H{{"product_id": product.ID, "quantity": 5}},
	})
	if tooMany.StatusCode != 422 {
		t.Fatalf("insufficient stock should be 422, got %+v", tooMany)
	}

	_, other := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), gin.H{"user_id": 6})
	if other.StatusCode != 404 {
		t.Fatalf("cancel by another user should be 404, got %+v", other)
	}
	_, canceled := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), gin.H{"user_id": 5})
	if canceled.StatusCode != 0 {
		t.Fatalf("cancel failed: %+v", canceled)
	}
	_, again := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), gin.H{"user_id": 5})
	if again.StatusCode != 409 {
		t.Fatalf("second cancel should be 409, got %+v", again)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := setupRouterTest(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz want 200 got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "couponflow_http_request_seconds") {
		t.Fatalf("metrics should expose http latency histogram")
	}
}
