package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

// Store keeps every table in maps. Writes go through WithinTx, which works on a
// private copy of the dataset and swaps it in only when the unit of work
// succeeds, so a failed checkout leaves nothing behind.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *dataset
}

type dataset struct {
	products    map[string]domain.Product
	barcodes    map[string]string
	priceRanges map[string][]domain.PriceRange
	sales       map[string]domain.Sale
	expenses    map[string]domain.Expense
	purchases   map[string]domain.PurchaseBill
	settings    domain.Settings
}

func New() *Store {
	return &Store{data: &dataset{
		products:    make(map[string]domain.Product),
		barcodes:    make(map[string]string),
		priceRanges: make(map[string][]domain.PriceRange),
		sales:       make(map[string]domain.Sale),
		expenses:    make(map[string]domain.Expense),
		purchases:   make(map[string]domain.PurchaseBill),
	}}
}

// NewSeeded returns a store with a small demo catalogue, used when no
// DATABASE_URL is configured.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prd-rice-5kg", Name: "Rice 5kg", Barcode: "8991001000011", CostPrice: decimal.RequireFromString("4.10"), SellingPrice: decimal.RequireFromString("5.25"), WholesalePrice: decimal.NewNullDecimal(decimal.RequireFromString("4.80")), QuantityInStock: 40},
		{ID: "prd-noodle", Name: "Instant Noodle", Barcode: "8991001000028", CostPrice: decimal.RequireFromString("0.20"), SellingPrice: decimal.RequireFromString("0.35"), QuantityInStock: 300, HasQuantityBasedPricing: true},
		{ID: "prd-egg-10", Name: "Eggs (10)", Barcode: "8991001000035", CostPrice: decimal.RequireFromString("1.60"), SellingPrice: decimal.RequireFromString("2.10"), QuantityInStock: 60},
		{ID: "prd-coffee", Name: "Coffee Sachet", Barcode: "8991001000042", CostPrice: decimal.RequireFromString("0.12"), SellingPrice: decimal.RequireFromString("0.20"), WholesalePrice: decimal.NewNullDecimal(decimal.RequireFromString("0.16")), QuantityInStock: 500, HasQuantityBasedPricing: true},
		{ID: "prd-soap", Name: "Bath Soap", Barcode: "8991001000059", CostPrice: decimal.RequireFromString("0.55"), SellingPrice: decimal.RequireFromString("0.80"), QuantityInStock: 80},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.data.products[p.ID] = p
		s.data.barcodes[p.Barcode] = p.ID
	}
	s.data.priceRanges["prd-noodle"] = []domain.PriceRange{
		{ID: "pr-noodle-1", ProductID: "prd-noodle", MinQuantity: 1, MaxQuantity: 9, Price: decimal.RequireFromString("0.35")},
		{ID: "pr-noodle-2", ProductID: "prd-noodle", MinQuantity: 10, MaxQuantity: 39, Price: decimal.RequireFromString("0.30")},
		{ID: "pr-noodle-3", ProductID: "prd-noodle", MinQuantity: 40, MaxQuantity: 200, Price: decimal.RequireFromString("0.27")},
	}
	s.data.priceRanges["prd-coffee"] = []domain.PriceRange{
		{ID: "pr-coffee-1", ProductID: "prd-coffee", MinQuantity: 1, MaxQuantity: 9, Price: decimal.RequireFromString("0.20")},
		{ID: "pr-coffee-2", ProductID: "prd-coffee", MinQuantity: 10, MaxQuantity: 100, Price: decimal.RequireFromString("0.17")},
	}
	s.data.settings = domain.Settings{WholesaleModeEnabled: true}
	return s
}

func (s *Store) WithinTx(_ context.Context, fn func(repo store.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&view{data: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

func (s *Store) read() *view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Committed datasets are never mutated in place, so the snapshot stays valid
	// after the lock is released.
	return &view{data: s.data}
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.read().GetProduct(ctx, id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.read().GetProductByBarcode(ctx, barcode)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.read().ListProducts(ctx)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var created *domain.Product
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		created, err = repo.CreateProduct(ctx, product)
		return err
	})
	return created, err
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var updated *domain.Product
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		updated, err = repo.UpdateProduct(ctx, product)
		return err
	})
	return updated, err
}

func (s *Store) UpdateProductStock(ctx context.Context, id string, newQuantity int) error {
	return s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.UpdateProductStock(ctx, id, newQuantity)
	})
}

func (s *Store) ListPriceRanges(ctx context.Context, productID string) ([]domain.PriceRange, error) {
	return s.read().ListPriceRanges(ctx, productID)
}

func (s *Store) ReplacePriceRanges(ctx context.Context, productID string, ranges []domain.PriceRange) error {
	return s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.ReplacePriceRanges(ctx, productID, ranges)
	})
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var created *domain.Sale
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		created, err = repo.InsertSale(ctx, sale)
		return err
	})
	return created, err
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.read().GetSale(ctx, id)
}

func (s *Store) MarkSaleCancelled(ctx context.Context, id string, at time.Time) error {
	return s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.MarkSaleCancelled(ctx, id, at)
	})
}

func (s *Store) ListSalesByTransaction(ctx context.Context, transactionID string) ([]domain.Sale, error) {
	return s.read().ListSalesByTransaction(ctx, transactionID)
}

func (s *Store) ListSalesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return s.read().ListSalesInRange(ctx, from, to)
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	var created *domain.Expense
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		created, err = repo.CreateExpense(ctx, expense)
		return err
	})
	return created, err
}

func (s *Store) ListExpensesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	return s.read().ListExpensesInRange(ctx, from, to)
}

func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.read().GetSettings(ctx)
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	return s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.SaveSettings(ctx, settings)
	})
}

func (s *Store) CreatePurchaseBill(ctx context.Context, bill domain.PurchaseBill) (*domain.PurchaseBill, error) {
	var created *domain.PurchaseBill
	err := s.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		created, err = repo.CreatePurchaseBill(ctx, bill)
		return err
	})
	return created, err
}

// view is the Repository over one dataset. Inside WithinTx it owns a private
// copy; outside it reads a committed snapshot.
type view struct {
	data *dataset
}

func (v *view) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	product, ok := v.data.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (v *view) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	id, ok := v.data.barcodes[strings.TrimSpace(barcode)]
	if !ok {
		return nil, store.ErrNotFound
	}
	product, ok := v.data.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (v *view) ListProducts(_ context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(v.data.products))
	for _, p := range v.data.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return products, nil
}

func (v *view) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.QuantityInStock < 0 {
		return nil, store.ErrInvalid
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := v.data.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.Barcode != "" {
		if _, taken := v.data.barcodes[product.Barcode]; taken {
			return nil, store.ErrConflict
		}
		v.data.barcodes[product.Barcode] = product.ID
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	v.data.products[product.ID] = product
	created := product
	return &created, nil
}

func (v *view) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.QuantityInStock < 0 {
		return nil, store.ErrInvalid
	}
	existing, ok := v.data.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Barcode != existing.Barcode {
		if product.Barcode != "" {
			if owner, taken := v.data.barcodes[product.Barcode]; taken && owner != product.ID {
				return nil, store.ErrConflict
			}
			v.data.barcodes[product.Barcode] = product.ID
		}
		if existing.Barcode != "" {
			delete(v.data.barcodes, existing.Barcode)
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	v.data.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (v *view) UpdateProductStock(_ context.Context, id string, newQuantity int) error {
	if newQuantity < 0 {
		return store.ErrInvalid
	}
	product, ok := v.data.products[id]
	if !ok {
		return store.ErrNotFound
	}
	product.QuantityInStock = newQuantity
	product.UpdatedAt = time.Now().UTC()
	v.data.products[id] = product
	return nil
}

func (v *view) ListPriceRanges(_ context.Context, productID string) ([]domain.PriceRange, error) {
	ranges := slices.Clone(v.data.priceRanges[productID])
	slices.SortStableFunc(ranges, func(a, b domain.PriceRange) int {
		return cmp.Compare(a.MinQuantity, b.MinQuantity)
	})
	return ranges, nil
}

func (v *view) ReplacePriceRanges(_ context.Context, productID string, ranges []domain.PriceRange) error {
	if _, ok := v.data.products[productID]; !ok {
		return store.ErrNotFound
	}
	if len(ranges) == 0 {
		delete(v.data.priceRanges, productID)
		return nil
	}
	replaced := make([]domain.PriceRange, 0, len(ranges))
	for _, r := range ranges {
		if r.ID == "" {
			r.ID = xid.New("pr")
		}
		r.ProductID = productID
		replaced = append(replaced, r)
	}
	v.data.priceRanges[productID] = replaced
	return nil
}

func (v *view) InsertSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ProductID == "" || sale.QuantitySold < 1 {
		return nil, store.ErrInvalid
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := v.data.sales[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	v.data.sales[sale.ID] = sale
	created := sale
	return &created, nil
}

func (v *view) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	sale, ok := v.data.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (v *view) MarkSaleCancelled(_ context.Context, id string, at time.Time) error {
	sale, ok := v.data.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	if sale.IsCancelled {
		return store.ErrConflict
	}
	sale.IsCancelled = true
	sale.CancelledAt = &at
	v.data.sales[id] = sale
	return nil
}

func (v *view) ListSalesByTransaction(_ context.Context, transactionID string) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0, 4)
	if transactionID == "" {
		return result, nil
	}
	for _, sale := range v.data.sales {
		if sale.TransactionID == transactionID {
			result = append(result, sale)
		}
	}
	slices.SortFunc(result, compareSales)
	return result, nil
}

func (v *view) ListSalesInRange(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0, 32)
	for _, sale := range v.data.sales {
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		result = append(result, sale)
	}
	slices.SortFunc(result, compareSales)
	return result, nil
}

func (v *view) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Description == "" || expense.Amount.IsNegative() {
		return nil, store.ErrInvalid
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}
	v.data.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (v *view) ListExpensesInRange(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	result := make([]domain.Expense, 0, 8)
	for _, expense := range v.data.expenses {
		if expense.Date.Before(from) || !expense.Date.Before(to) {
			continue
		}
		result = append(result, expense)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (v *view) GetSettings(_ context.Context) (domain.Settings, error) {
	return v.data.settings, nil
}

func (v *view) SaveSettings(_ context.Context, settings domain.Settings) error {
	v.data.settings = settings
	return nil
}

func (v *view) CreatePurchaseBill(_ context.Context, bill domain.PurchaseBill) (*domain.PurchaseBill, error) {
	if len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if bill.ID == "" {
		bill.ID = xid.New("po")
	}
	if bill.ReceivedAt.IsZero() {
		bill.ReceivedAt = time.Now().UTC()
	}
	bill.Items = slices.Clone(bill.Items)
	v.data.purchases[bill.ID] = bill
	created := bill
	created.Items = slices.Clone(bill.Items)
	return &created, nil
}

func (d *dataset) clone() *dataset {
	ranges := make(map[string][]domain.PriceRange, len(d.priceRanges))
	for productID, r := range d.priceRanges {
		ranges[productID] = slices.Clone(r)
	}
	return &dataset{
		products:    maps.Clone(d.products),
		barcodes:    maps.Clone(d.barcodes),
		priceRanges: ranges,
		sales:       maps.Clone(d.sales),
		expenses:    maps.Clone(d.expenses),
		purchases:   maps.Clone(d.purchases),
		settings:    d.settings,
	}
}

func compareSales(a, b domain.Sale) int {
	if c := a.SaleDate.Compare(b.SaleDate); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
