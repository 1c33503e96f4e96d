package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokopos/internal/domain"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

//go:embed schema.sql
var schema string

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	productColumns = `id, name, COALESCE(barcode, ''), cost_price, selling_price, wholesale_price,
		quantity_in_stock, has_quantity_based_pricing, created_at, updated_at`
)

var saleColumns = []string{
	"id", "COALESCE(transaction_id, '')", "product_id", "product_name", "quantity_sold",
	"unit_price", "total_amount", "cost_price", "profit", "discount_amount",
	"payment_method", "is_wholesale", "is_cancelled", "cancelled_at", "sale_date",
}

// querier is what *sql.DB and *sql.Tx have in common.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements store.Repository over a querier. Inside a transaction
// lock is set and product reads take row locks.
type queries struct {
	q    querier
	lock bool
}

type Store struct {
	*queries
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{queries: &queries{q: db}, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&queries{q: tx, lock: true}); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplacePriceRanges and CreatePurchaseBill write several rows, so outside an
// explicit transaction they open their own.
func (s *Store) ReplacePriceRanges(ctx context.Context, productID string, ranges []domain.PriceRange) error {
	return s.WithinTx(ctx, func(repo store.Repository) error {
		return repo.ReplacePriceRanges(ctx, productID, ranges)
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

func (r *queries) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}
	return scanProduct(r.q.QueryRowContext(ctx, query, id))
}

func (r *queries) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE barcode = $1`
	if r.lock {
		query += ` FOR UPDATE`
	}
	return scanProduct(r.q.QueryRowContext(ctx, query, strings.TrimSpace(barcode)))
}

func (r *queries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY lower(name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *queries) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.QuantityInStock < 0 {
		return nil, store.ErrInvalid
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO products (
			id, name, barcode, cost_price, selling_price, wholesale_price,
			quantity_in_stock, has_quantity_based_pricing, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
		RETURNING created_at, updated_at
	`,
		product.ID,
		product.Name,
		nullIfEmpty(product.Barcode),
		product.CostPrice,
		product.SellingPrice,
		product.WholesalePrice,
		product.QuantityInStock,
		product.HasQuantityBasedPricing,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &product, nil
}

func (r *queries) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.QuantityInStock < 0 {
		return nil, store.ErrInvalid
	}

	err := r.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, cost_price = $4, selling_price = $5, wholesale_price = $6,
			quantity_in_stock = $7, has_quantity_based_pricing = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`,
		product.ID,
		product.Name,
		nullIfEmpty(product.Barcode),
		product.CostPrice,
		product.SellingPrice,
		product.WholesalePrice,
		product.QuantityInStock,
		product.HasQuantityBasedPricing,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &product, nil
}

func (r *queries) UpdateProductStock(ctx context.Context, id string, newQuantity int) error {
	if newQuantity < 0 {
		return store.ErrInvalid
	}
	res, err := r.q.ExecContext(ctx, `
		UPDATE products SET quantity_in_stock = $2, updated_at = now() WHERE id = $1
	`, id, newQuantity)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

func (r *queries) ListPriceRanges(ctx context.Context, productID string) ([]domain.PriceRange, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, min_quantity, max_quantity, price
		FROM price_ranges
		WHERE product_id = $1
		ORDER BY min_quantity, max_quantity, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranges := make([]domain.PriceRange, 0, 4)
	for rows.Next() {
		var pr domain.PriceRange
		if err := rows.Scan(&pr.ID, &pr.ProductID, &pr.MinQuantity, &pr.MaxQuantity, &pr.Price); err != nil {
			return nil, err
		}
		ranges = append(ranges, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranges, nil
}

func (r *queries) ReplacePriceRanges(ctx context.Context, productID string, ranges []domain.PriceRange) error {
	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM price_ranges WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, pr := range ranges {
		if pr.ID == "" {
			pr.ID = xid.New("pr")
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO price_ranges (id, product_id, min_quantity, max_quantity, price)
			VALUES ($1,$2,$3,$4,$5)
		`, pr.ID, productID, pr.MinQuantity, pr.MaxQuantity, pr.Price)
		if err != nil {
			return mapWriteError(err)
		}
	}
	return nil
}

func (r *queries) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ProductID == "" || sale.QuantitySold < 1 {
		return nil, store.ErrInvalid
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sales (
			id, transaction_id, product_id, product_name, quantity_sold,
			unit_price, total_amount, cost_price, profit, discount_amount,
			payment_method, is_wholesale, is_cancelled, cancelled_at, sale_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		sale.ID,
		nullIfEmpty(sale.TransactionID),
		sale.ProductID,
		sale.ProductName,
		sale.QuantitySold,
		sale.UnitPrice,
		sale.TotalAmount,
		sale.CostPrice,
		sale.Profit,
		sale.DiscountAmount,
		string(sale.PaymentMethod),
		sale.IsWholesale,
		sale.IsCancelled,
		nullTime(sale.CancelledAt),
		sale.SaleDate,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &sale, nil
}

func (r *queries) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	query, args, err := psql.Select(saleColumns...).From("sales").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	if r.lock {
		query += ` FOR UPDATE`
	}
	return scanSale(r.q.QueryRowContext(ctx, query, args...))
}

// MarkSaleCancelled only flips rows that are still active, so two racing
// cancels cannot both succeed.
func (r *queries) MarkSaleCancelled(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sales SET is_cancelled = true, cancelled_at = $2
		WHERE id = $1 AND is_cancelled = false
	`, id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (r *queries) ListSalesByTransaction(ctx context.Context, transactionID string) ([]domain.Sale, error) {
	if transactionID == "" {
		return []domain.Sale{}, nil
	}
	return r.listSales(ctx, psql.Select(saleColumns...).
		From("sales").
		Where(sq.Eq{"transaction_id": transactionID}).
		OrderBy("sale_date", "id"))
}

func (r *queries) ListSalesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return r.listSales(ctx, psql.Select(saleColumns...).
		From("sales").
		Where(sq.GtOrEq{"sale_date": from}).
		Where(sq.Lt{"sale_date": to}).
		OrderBy("sale_date", "id"))
}

func (r *queries) listSales(ctx context.Context, builder sq.SelectBuilder) ([]domain.Sale, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *queries) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Description == "" || expense.Amount.IsNegative() {
		return nil, store.ErrInvalid
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Date.IsZero() {
		expense.Date = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO expenses (id, description, amount, category, date)
		VALUES ($1,$2,$3,$4,$5)
	`, expense.ID, expense.Description, expense.Amount, expense.Category, expense.Date)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &expense, nil
}

func (r *queries) ListExpensesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	query, args, err := psql.Select("id", "description", "amount", "category", "date").
		From("expenses").
		Where(sq.GtOrEq{"date": from}).
		Where(sq.Lt{"date": to}).
		OrderBy("date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 8)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.Category, &e.Date); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *queries) GetSettings(ctx context.Context) (domain.Settings, error) {
	var settings domain.Settings
	err := r.q.QueryRowContext(ctx, `
		SELECT wholesale_mode_enabled, currency_code FROM settings WHERE id = 1
	`).Scan(&settings.WholesaleModeEnabled, &settings.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

func (r *queries) SaveSettings(ctx context.Context, settings domain.Settings) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO settings (id, wholesale_mode_enabled, currency_code)
		VALUES (1, $1, $2)
		ON CONFLICT (id)
		DO UPDATE SET wholesale_mode_enabled = EXCLUDED.wholesale_mode_enabled, currency_code = EXCLUDED.currency_code
	`, settings.WholesaleModeEnabled, settings.CurrencyCode)
	return err
}

func (r *queries) CreatePurchaseBill(ctx context.Context, bill domain.PurchaseBill) (*domain.PurchaseBill, error) {
	if len(bill.Items) == 0 {
		return nil, store.ErrInvalid
	}
	if bill.ID == "" {
		bill.ID = xid.New("po")
	}
	if bill.ReceivedAt.IsZero() {
		bill.ReceivedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO purchase_bills (id, supplier_name, total_cost, received_at)
		VALUES ($1,$2,$3,$4)
	`, bill.ID, bill.SupplierName, bill.TotalCost, bill.ReceivedAt)
	if err != nil {
		return nil, mapWriteError(err)
	}

	for i, item := range bill.Items {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO purchase_items (bill_id, line_no, product_id, qty, unit_cost)
			VALUES ($1,$2,$3,$4,$5)
		`, bill.ID, i+1, item.ProductID, item.Qty, item.UnitCost)
		if err != nil {
			return nil, mapWriteError(err)
		}
	}
	return &bill, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Barcode,
		&p.CostPrice,
		&p.SellingPrice,
		&p.WholesalePrice,
		&p.QuantityInStock,
		&p.HasQuantityBasedPricing,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var (
		sale        domain.Sale
		method      string
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&sale.ID,
		&sale.TransactionID,
		&sale.ProductID,
		&sale.ProductName,
		&sale.QuantitySold,
		&sale.UnitPrice,
		&sale.TotalAmount,
		&sale.CostPrice,
		&sale.Profit,
		&sale.DiscountAmount,
		&method,
		&sale.IsWholesale,
		&sale.IsCancelled,
		&cancelledAt,
		&sale.SaleDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sale.PaymentMethod = domain.PaymentMethod(method)
	sale.SaleDate = sale.SaleDate.UTC()
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		sale.CancelledAt = &at
	}
	return &sale, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		case "23514", "23502":
			return fmt.Errorf("%w: %s", store.ErrInvalid, pgErr.Message)
		}
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
