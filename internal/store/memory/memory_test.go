package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, domain.Product{Name: "Tea", QuantityInStock: 5})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(repo store.Repository) error {
		if err := repo.UpdateProductStock(ctx, product.ID, 0); err != nil {
			return err
		}
		if _, err := repo.InsertSale(ctx, domain.Sale{ProductID: product.ID, QuantitySold: 5}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if stored.QuantityInStock != 5 {
		t.Fatalf("expected stock 5 after rollback, got %d", stored.QuantityInStock)
	}
	sales, _ := s.ListSalesInRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if len(sales) != 0 {
		t.Fatalf("expected no sales after rollback, got %d", len(sales))
	}
}

func TestWithinTxSeesItsOwnWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	product, _ := s.CreateProduct(ctx, domain.Product{Name: "Tea", QuantityInStock: 5})

	err := s.WithinTx(ctx, func(repo store.Repository) error {
		if err := repo.UpdateProductStock(ctx, product.ID, 2); err != nil {
			return err
		}
		inTx, err := repo.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if inTx.QuantityInStock != 2 {
			t.Fatalf("expected tx to read its own write, got %d", inTx.QuantityInStock)
		}
		outside, _ := s.GetProduct(ctx, product.ID)
		if outside.QuantityInStock != 5 {
			t.Fatalf("uncommitted write leaked: %d", outside.QuantityInStock)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestMarkSaleCancelledIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()

	sale, err := s.InsertSale(ctx, domain.Sale{ProductID: "prd-x", QuantitySold: 1})
	if err != nil {
		t.Fatalf("insert sale: %v", err)
	}
	if err := s.MarkSaleCancelled(ctx, sale.ID, time.Now()); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := s.MarkSaleCancelled(ctx, sale.ID, time.Now()); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.MarkSaleCancelled(ctx, "nope", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBarcodeUniquenessAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateProduct(ctx, domain.Product{Name: "Soap", Barcode: "111"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Other", Barcode: "111"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	first.Barcode = "222"
	if _, err := s.UpdateProduct(ctx, *first); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.GetProductByBarcode(ctx, "111"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old barcode should be released, got %v", err)
	}
	found, err := s.GetProductByBarcode(ctx, "222")
	if err != nil || found.ID != first.ID {
		t.Fatalf("lookup by new barcode failed: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Reuse", Barcode: "111"}); err != nil {
		t.Fatalf("released barcode should be reusable: %v", err)
	}
}

func TestRangeQueriesAreHalfOpenAndSorted(t *testing.T) {
	s := New()
	ctx := context.Background()
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{day.Add(5 * time.Hour), day, day.Add(24 * time.Hour), day.Add(-time.Nanosecond)} {
		if _, err := s.InsertSale(ctx, domain.Sale{ProductID: "p", QuantitySold: 1, SaleDate: at}); err != nil {
			t.Fatalf("insert sale: %v", err)
		}
		if _, err := s.CreateExpense(ctx, domain.Expense{Description: "x", Amount: decimal.NewFromInt(1), Date: at}); err != nil {
			t.Fatalf("create expense: %v", err)
		}
	}

	sales, err := s.ListSalesInRange(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 || !sales[0].SaleDate.Equal(day) {
		t.Fatalf("expected 2 sales starting at midnight, got %+v", sales)
	}
	expenses, _ := s.ListExpensesInRange(ctx, day, day.Add(24*time.Hour))
	if len(expenses) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(expenses))
	}
}

func TestReplacePriceRanges(t *testing.T) {
	s := New()
	ctx := context.Background()
	product, _ := s.CreateProduct(ctx, domain.Product{Name: "Noodle"})

	err := s.ReplacePriceRanges(ctx, product.ID, []domain.PriceRange{
		{MinQuantity: 11, MaxQuantity: 50, Price: decimal.RequireFromString("0.80")},
		{MinQuantity: 1, MaxQuantity: 10, Price: decimal.RequireFromString("1.00")},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	ranges, _ := s.ListPriceRanges(ctx, product.ID)
	if len(ranges) != 2 || ranges[0].MinQuantity != 1 || ranges[0].ID == "" || ranges[0].ProductID != product.ID {
		t.Fatalf("unexpected ranges: %+v", ranges)
	}

	if err := s.ReplacePriceRanges(ctx, "missing", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewSeededHasCatalogue(t *testing.T) {
	s := NewSeeded()
	products, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected demo catalogue")
	}
	settings, _ := s.GetSettings(context.Background())
	if !settings.WholesaleModeEnabled {
		t.Fatalf("expected wholesale mode on in the demo store")
	}
}
