package store

import (
	"context"
	"errors"
	"time"

	"tokopos/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write loses (the row changed
	// underneath it) or a unique key is already taken.
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid record")
)

type Repository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProductStock(ctx context.Context, id string, newQuantity int) error

	// ListPriceRanges returns the product's tiers ordered by MinQuantity ascending.
	ListPriceRanges(ctx context.Context, productID string) ([]domain.PriceRange, error)
	ReplacePriceRanges(ctx context.Context, productID string, ranges []domain.PriceRange) error

	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// MarkSaleCancelled flips is_cancelled from false to true. It returns
	// ErrConflict when the sale is already cancelled.
	MarkSaleCancelled(ctx context.Context, id string, at time.Time) error
	ListSalesByTransaction(ctx context.Context, transactionID string) ([]domain.Sale, error)
	// ListSalesInRange returns sales with from <= sale_date < to, cancelled ones included.
	ListSalesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpensesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error

	CreatePurchaseBill(ctx context.Context, bill domain.PurchaseBill) (*domain.PurchaseBill, error)
}

// Transactor runs fn as one atomic unit of work. fn must only use the
// Repository it is handed; any error returned rolls every write back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

type TxRepository interface {
	Repository
	Transactor
}
