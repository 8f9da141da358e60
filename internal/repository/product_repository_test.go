package repository

import (
	"errors"
	"testing"

	"github.com/couponflow/internal/models"

	"github.com/shopspring/decimal"
)

func createTestProduct(t *testing.T, repo *GormProductRepository, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Price:    models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Stock:    stock,
		IsActive: true,
	}
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestProductRepositoryListByIDsForUpdateOrdersByID(t *testing.T) {
	repo := NewProductRepository(openTestDB(t))
	a := createTestProduct(t, repo, "a", 1)
	b := createTestProduct(t, repo, "b", 2)
	c := createTestProduct(t, repo, "c", 3)

	products, err := repo.ListByIDsForUpdate([]uint{c.ID, a.ID, b.ID, 999})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}
	for i, want := range []uint{a.ID, b.ID, c.ID} {
		if products[i].ID != want {
			t.Fatalf("product %d want id %d got %d", i, want, products[i].ID)
		}
	}

	empty, err := repo.ListByIDsForUpdate(nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty ids should return empty slice, got %v %v", empty, err)
	}
}

func TestProductRepositoryUpdateStockWithVersion(t *testing.T) {
	repo := NewProductRepository(openTestDB(t))
	product := createTestProduct(t, repo, "keyboard", 5)

	stale := *product
	product.Stock = 4
	if err := repo.UpdateStockWithVersion(product); err != nil {
		t.Fatalf("update stock failed: %v", err)
	}
	if product.Version != 1 {
		t.Fatalf("version want 1 got %d", product.Version)
	}

	stale.Stock = 3
	if err := repo.UpdateStockWithVersion(&stale); !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("stale update should conflict, got %v", err)
	}

	reloaded, err := repo.GetByID(product.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Stock != 4 || reloaded.Version != 1 {
		t.Fatalf("unexpected stored product: stock=%d version=%d", reloaded.Stock, reloaded.Version)
	}
}
