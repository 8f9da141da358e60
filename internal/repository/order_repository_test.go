package repository

import (
	"testing"

	"github.com/couponflow/internal/constants"
	"github.com/couponflow/internal/models"
)

func TestOrderRepositoryCreateWithItems(t *testing.T) {
	db := openTestDB(t)
	repo := NewOrderRepository(db)
	order := &models.Order{
		OrderNo: "CF-TEST-1",
		UserID:  3,
		Status:  constants.OrderStatusCreated,
		Items: []models.OrderItem{
			{ProductID: 1, UnitPrice: models.NewMoneyFromString("12.50"), Quantity: 2, TotalPrice: models.NewMoneyFromString("25.00")},
			{ProductID: 2, UnitPrice: models.NewMoneyFromString("3.00"), Quantity: 1, TotalPrice: models.NewMoneyFromString("3.00")},
		},
	}
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	loaded, err := repo.GetByIDForUpdate(order.ID)
	if err != nil || loaded == nil {
		t.Fatalf("load order failed: %v", err)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(loaded.Items))
	}
	if got := loaded.Items[0].TotalPrice.String(); got != "25.00" {
		t.Fatalf("unexpected total price %s", got)
	}

	loaded.Status = constants.OrderStatusCanceled
	if err := repo.Update(loaded); err != nil {
		t.Fatalf("update order failed: %v", err)
	}
	reloaded, _ := repo.GetByID(order.ID)
	if reloaded.Status != constants.OrderStatusCanceled || len(reloaded.Items) != 2 {
		t.Fatalf("unexpected reloaded order: %+v", reloaded)
	}
}

func TestProductRepositoryListForUpdateSorted(t *testing.T) {
	db := openTestDB(t)
	repo := NewProductRepository(db)
	for _, name := range []string{"a", "b", "c"} {
		if err := repo.Create(&models.Product{Name: name, Price: models.NewMoneyFromString("1"), Stock: 5, IsActive: true}); err != nil {
			t.Fatalf("create product failed: %v", err)
		}
	}
	products, err := repo.ListByIDsForUpdate([]uint{3, 1})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(products) != 2 || products[0].ID != 1 || products[1].ID != 3 {
		t.Fatalf("unexpected products: %+v", products)
	}
	products[0].Stock = 4
	if err := repo.UpdateStockWithVersion(&products[0]); err != nil {
		t.Fatalf("update stock failed: %v", err)
	}
	reloaded, _ := repo.GetByID(1)
	if reloaded.Stock != 4 || reloaded.Version != 1 {
		t.Fatalf("unexpected product: %+v", reloaded)
	}
}
