package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TOKOPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TOKOPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestSaleAndCancelRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	product, err := s.CreateProduct(ctx, domain.Product{
		ID:              productID,
		Name:            "Integration Soap",
		CostPrice:       decimal.RequireFromString("2"),
		SellingPrice:    decimal.RequireFromString("5"),
		QuantityInStock: 10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.WholesalePrice.Valid {
		t.Fatalf("expected no wholesale price")
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	var saleID string
	err = s.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		sale, err := repo.InsertSale(ctx, domain.Sale{
			ProductID:     productID,
			ProductName:   locked.Name,
			QuantitySold:  3,
			UnitPrice:     decimal.RequireFromString("5"),
			TotalAmount:   decimal.RequireFromString("15"),
			CostPrice:     locked.CostPrice,
			Profit:        decimal.RequireFromString("9"),
			PaymentMethod: domain.PaymentCash,
			SaleDate:      at,
		})
		if err != nil {
			return err
		}
		saleID = sale.ID
		return repo.UpdateProductStock(ctx, productID, locked.QuantityInStock-3)
	})
	if err != nil {
		t.Fatalf("record sale tx: %v", err)
	}

	stored, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.QuantityInStock != 7 {
		t.Fatalf("expected stock 7, got %d", stored.QuantityInStock)
	}

	sales, err := s.ListSalesInRange(ctx, at.Add(-time.Second), at.Add(time.Second))
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	found := false
	for _, sale := range sales {
		if sale.ID == saleID {
			found = true
			if !sale.TotalAmount.Equal(decimal.RequireFromString("15")) {
				t.Fatalf("expected total 15, got %s", sale.TotalAmount)
			}
		}
	}
	if !found {
		t.Fatalf("expected sale %s in range", saleID)
	}

	if err := s.MarkSaleCancelled(ctx, saleID, time.Now().UTC()); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := s.MarkSaleCancelled(ctx, saleID, time.Now().UTC()); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on second cancel, got %v", err)
	}
	if err := s.MarkSaleCancelled(ctx, "sale-missing", time.Now().UTC()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFailedTxRollsBack(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	productID := fmt.Sprintf("prd-it-rb-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})
	if _, err := s.CreateProduct(ctx, domain.Product{ID: productID, Name: "Rollback", QuantityInStock: 5}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		if err := repo.UpdateProductStock(ctx, productID, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := s.GetProduct(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.QuantityInStock != 5 {
		t.Fatalf("expected rollback to keep stock 5, got %d", stored.QuantityInStock)
	}
}

func TestDuplicateBarcodeIsConflict(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	barcode := fmt.Sprintf("it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE barcode = $1`, barcode)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{Name: "First", Barcode: barcode}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Second", Barcode: barcode}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
