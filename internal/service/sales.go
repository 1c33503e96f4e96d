package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokopos/internal/domain"
	"tokopos/internal/pricing"
	"tokopos/internal/store"
	"tokopos/internal/xid"
)

// RecordSale sells one product line. The sale row and the stock decrement are
// written in one transaction; on any error nothing is persisted.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	line := domain.CartLine{
		ProductID:      strings.TrimSpace(req.ProductID),
		Qty:            req.QuantitySold,
		IsWholesale:    req.IsWholesale,
		DiscountAmount: req.DiscountAmount,
	}

	var sale domain.Sale
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		settings, err := repo.GetSettings(ctx)
		if err != nil {
			return persistence("get settings", err)
		}
		sale, err = recordLine(ctx, repo, settings, line, req.PaymentMethod, "", now)
		return err
	})
	if err := settle("record sale", err); err != nil {
		s.logger.Info("sale rejected", zap.String("product_id", line.ProductID), zap.Int("qty", line.Qty), zap.Error(err))
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx, sale.SaleDate)
	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("product_id", sale.ProductID),
		zap.Int("qty", sale.QuantitySold),
		zap.Stringer("total", sale.TotalAmount),
		zap.String("payment", string(sale.PaymentMethod)),
	)
	return sale, nil
}

// Checkout records a bill: every cart line becomes a sale sharing one
// transaction id. The bill is all-or-nothing; if line 3 of 5 fails, lines 1
// and 2 are rolled back and the error is a *LineError naming line 3.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Bill, error) {
	if len(req.Lines) == 0 {
		return domain.Bill{}, invalid("cart is empty")
	}
	// An unsupported method fails on line 1, after that line's product and
	// stock checks, like a single sale.
	method, _ := paymentMethod(req.PaymentMethod)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	bill := domain.Bill{
		TransactionID: xid.New("bill"),
		PaymentMethod: method,
		Sales:         make([]domain.Sale, 0, len(req.Lines)),
		TotalAmount:   decimal.Zero,
		Profit:        decimal.Zero,
		CreatedAt:     now,
	}

	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		settings, err := repo.GetSettings(ctx)
		if err != nil {
			return persistence("get settings", err)
		}
		for i, line := range req.Lines {
			line.ProductID = strings.TrimSpace(line.ProductID)
			sale, err := recordLine(ctx, repo, settings, line, req.PaymentMethod, bill.TransactionID, now)
			if err != nil {
				return &LineError{Index: i + 1, Lines: len(req.Lines), Err: err}
			}
			bill.Sales = append(bill.Sales, sale)
		}
		return nil
	})
	if err := settle("checkout", err); err != nil {
		s.logger.Info("checkout rejected", zap.Int("lines", len(req.Lines)), zap.Error(err))
		return domain.Bill{}, err
	}

	for _, sale := range bill.Sales {
		bill.TotalAmount = bill.TotalAmount.Add(sale.TotalAmount)
		bill.Profit = bill.Profit.Add(sale.Profit)
	}

	s.invalidateReports(ctx, now)
	s.logger.Info("checkout completed",
		zap.String("transaction_id", bill.TransactionID),
		zap.Int("lines", len(bill.Sales)),
		zap.Stringer("total", bill.TotalAmount),
		zap.String("payment", string(method)),
	)
	return bill, nil
}

// PreviewCart prices the cart exactly as Checkout would, without writing.
// Stock is tracked across lines so two lines of the same product share it.
func (s *Service) PreviewCart(ctx context.Context, req domain.CheckoutRequest) (domain.CartPreview, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.CartPreview{}, err
	}

	preview := domain.CartPreview{
		Lines:       make([]domain.CartPreviewLine, 0, len(req.Lines)),
		TotalAmount: decimal.Zero,
		CanCheckout: len(req.Lines) > 0,
	}
	remaining := map[string]int{}

	for i, line := range req.Lines {
		fail := func(err error) (domain.CartPreview, error) {
			return domain.CartPreview{}, &LineError{Index: i + 1, Lines: len(req.Lines), Err: err}
		}

		product, err := loadProduct(ctx, s.repo, strings.TrimSpace(line.ProductID))
		if err != nil {
			return fail(err)
		}
		if line.Qty < 1 {
			return fail(ErrInvalidQuantity)
		}
		if line.DiscountAmount.IsNegative() {
			return fail(invalid("discount must not be negative"))
		}
		ranges, err := tiersFor(ctx, s.repo, *product)
		if err != nil {
			return fail(err)
		}

		quote := pricing.Resolve(*product, ranges, line.Qty, line.IsWholesale, settings)
		total := applyDiscount(quote.Total, line.DiscountAmount)

		available, seen := remaining[product.ID]
		if !seen {
			available = product.QuantityInStock
		}
		shortfall := 0
		if line.Qty > available {
			shortfall = line.Qty - available
			preview.CanCheckout = false
		}
		remaining[product.ID] = max(available-line.Qty, 0)

		preview.Lines = append(preview.Lines, domain.CartPreviewLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         line.Qty,
			UnitPrice:   quote.UnitPrice,
			Subtotal:    quote.Total,
			Discount:    quote.Total.Sub(total),
			Total:       total,
			PriceSource: string(quote.Source),
			InStock:     available,
			Shortfall:   shortfall,
		})
		preview.TotalAmount = preview.TotalAmount.Add(total)
	}
	return preview, nil
}

// CancelSale reverses one sale: stock goes back up by the quantity sold and
// the row is flagged cancelled. Amounts on the row are left untouched.
func (s *Service) CancelSale(ctx context.Context, saleID string) (domain.Sale, error) {
	saleID = strings.TrimSpace(saleID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var cancelled domain.Sale
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		cancelled, err = cancelLine(ctx, repo, saleID, s.now())
		return err
	})
	if err := settle("cancel sale", err); err != nil {
		return domain.Sale{}, err
	}

	s.invalidateReports(ctx, cancelled.SaleDate)
	s.logger.Info("sale cancelled",
		zap.String("sale_id", cancelled.ID),
		zap.String("product_id", cancelled.ProductID),
		zap.Int("restocked", cancelled.QuantitySold),
	)
	return cancelled, nil
}

// CancelBill cancels every still-active sale of a bill in one transaction.
func (s *Service) CancelBill(ctx context.Context, transactionID string) (domain.Bill, error) {
	transactionID = strings.TrimSpace(transactionID)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var bill domain.Bill
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		sales, err := repo.ListSalesByTransaction(ctx, transactionID)
		if err != nil {
			return persistence("list bill sales", err)
		}
		if len(sales) == 0 {
			return ErrSaleNotFound
		}

		at := s.now()
		touched := 0
		for i, sale := range sales {
			if sale.IsCancelled {
				continue
			}
			cancelled, err := cancelLine(ctx, repo, sale.ID, at)
			if err != nil {
				return &LineError{Index: i + 1, Lines: len(sales), Err: err}
			}
			sales[i] = cancelled
			touched++
		}
		if touched == 0 {
			return ErrAlreadyCancelled
		}
		bill = buildBill(transactionID, sales)
		return nil
	})
	if err := settle("cancel bill", err); err != nil {
		return domain.Bill{}, err
	}

	s.invalidateReports(ctx, bill.CreatedAt)
	s.logger.Info("bill cancelled", zap.String("transaction_id", transactionID), zap.Int("lines", len(bill.Sales)))
	return bill, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(saleID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, persistence("get sale", err)
	}
	return *sale, nil
}

// GetBill returns every sale of a bill, cancelled ones included. Totals only
// count active sales.
func (s *Service) GetBill(ctx context.Context, transactionID string) (domain.Bill, error) {
	transactionID = strings.TrimSpace(transactionID)
	sales, err := s.repo.ListSalesByTransaction(ctx, transactionID)
	if err != nil {
		return domain.Bill{}, persistence("list bill sales", err)
	}
	if len(sales) == 0 {
		return domain.Bill{}, ErrSaleNotFound
	}
	return buildBill(transactionID, sales), nil
}

// recordLine checks and writes one sale inside an open transaction.
// Preconditions run in order: product exists, quantity >= 1, enough stock,
// then payment method and discount.
func recordLine(ctx context.Context, repo store.Repository, settings domain.Settings, line domain.CartLine, rawMethod domain.PaymentMethod, transactionID string, at time.Time) (domain.Sale, error) {
	product, err := loadProduct(ctx, repo, line.ProductID)
	if err != nil {
		return domain.Sale{}, err
	}
	if line.Qty < 1 {
		return domain.Sale{}, ErrInvalidQuantity
	}
	if product.QuantityInStock < line.Qty {
		return domain.Sale{}, &StockError{ProductID: product.ID, Requested: line.Qty, Available: product.QuantityInStock}
	}
	method, err := paymentMethod(rawMethod)
	if err != nil {
		return domain.Sale{}, err
	}
	if line.DiscountAmount.IsNegative() {
		return domain.Sale{}, invalid("discount must not be negative")
	}

	ranges, err := tiersFor(ctx, repo, *product)
	if err != nil {
		return domain.Sale{}, err
	}
	quote := pricing.Resolve(*product, ranges, line.Qty, line.IsWholesale, settings)

	qty := decimal.NewFromInt(int64(line.Qty))
	total := applyDiscount(quote.Total, line.DiscountAmount)
	profit := total.Sub(product.CostPrice.Mul(qty))

	sale := domain.Sale{
		ID:             xid.New("sale"),
		TransactionID:  transactionID,
		ProductID:      product.ID,
		ProductName:    product.Name,
		QuantitySold:   line.Qty,
		UnitPrice:      total.DivRound(qty, 4),
		TotalAmount:    total,
		CostPrice:      product.CostPrice,
		Profit:         profit,
		DiscountAmount: line.DiscountAmount,
		PaymentMethod:  method,
		IsWholesale:    quote.Source == pricing.SourceWholesale,
		SaleDate:       at,
	}

	created, err := repo.InsertSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, persistence("insert sale", err)
	}
	if err := repo.UpdateProductStock(ctx, product.ID, product.QuantityInStock-line.Qty); err != nil {
		return domain.Sale{}, persistence("decrement stock", err)
	}
	return *created, nil
}

func cancelLine(ctx context.Context, repo store.Repository, saleID string, at time.Time) (domain.Sale, error) {
	if saleID == "" {
		return domain.Sale{}, ErrSaleNotFound
	}
	sale, err := repo.GetSale(ctx, saleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, persistence("get sale", err)
	}
	if sale.IsCancelled {
		return domain.Sale{}, ErrAlreadyCancelled
	}

	product, err := loadProduct(ctx, repo, sale.ProductID)
	if err != nil {
		return domain.Sale{}, err
	}

	// Conditional flip; a concurrent cancel that got here first shows up as a
	// conflict instead of a second restock.
	err = repo.MarkSaleCancelled(ctx, sale.ID, at)
	if errors.Is(err, store.ErrConflict) {
		return domain.Sale{}, ErrAlreadyCancelled
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, persistence("mark sale cancelled", err)
	}
	if err := repo.UpdateProductStock(ctx, product.ID, product.QuantityInStock+sale.QuantitySold); err != nil {
		return domain.Sale{}, persistence("restore stock", err)
	}

	sale.IsCancelled = true
	sale.CancelledAt = &at
	return *sale, nil
}

func tiersFor(ctx context.Context, repo store.Repository, product domain.Product) ([]domain.PriceRange, error) {
	if !product.HasQuantityBasedPricing {
		return nil, nil
	}
	ranges, err := repo.ListPriceRanges(ctx, product.ID)
	if err != nil {
		return nil, persistence("list price ranges", err)
	}
	return ranges, nil
}

// applyDiscount subtracts discount from total, flooring at zero.
func applyDiscount(total decimal.Decimal, discount decimal.Decimal) decimal.Decimal {
	discounted := total.Sub(discount)
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}

func paymentMethod(method domain.PaymentMethod) (domain.PaymentMethod, error) {
	method = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(method))))
	if method == "" {
		return domain.PaymentCash, nil
	}
	if !method.Valid() {
		return "", invalid("unsupported payment method %q", method)
	}
	return method, nil
}

func buildBill(transactionID string, sales []domain.Sale) domain.Bill {
	bill := domain.Bill{
		TransactionID: transactionID,
		Sales:         sales,
		TotalAmount:   decimal.Zero,
		Profit:        decimal.Zero,
	}
	for i, sale := range sales {
		if i == 0 {
			bill.PaymentMethod = sale.PaymentMethod
			bill.CreatedAt = sale.SaleDate
		}
		if sale.IsCancelled {
			continue
		}
		bill.TotalAmount = bill.TotalAmount.Add(sale.TotalAmount)
		bill.Profit = bill.Profit.Add(sale.Profit)
	}
	return bill
}
