package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokopos/internal/domain"
	"tokopos/internal/store"
)

// ReceivePurchase books goods from a supplier: each item adds stock and
// re-costs its product at the weighted average of old and incoming units.
// Past sales keep the cost they were recorded with.
func (s *Service) ReceivePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.PurchaseBill, error) {
	req.SupplierName = strings.TrimSpace(req.SupplierName)
	if len(req.Items) == 0 {
		return domain.PurchaseBill{}, invalid("purchase has no items")
	}
	for i, item := range req.Items {
		if item.Qty < 1 {
			return domain.PurchaseBill{}, &LineError{Index: i + 1, Lines: len(req.Items), Err: ErrInvalidQuantity}
		}
		if item.UnitCost.IsNegative() {
			return domain.PurchaseBill{}, &LineError{Index: i + 1, Lines: len(req.Items), Err: invalid("unit cost must not be negative")}
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	bill := domain.PurchaseBill{
		SupplierName: req.SupplierName,
		Items:        make([]domain.PurchaseItem, 0, len(req.Items)),
		TotalCost:    decimal.Zero,
		ReceivedAt:   s.now(),
	}

	var created *domain.PurchaseBill
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		for i, item := range req.Items {
			item.ProductID = strings.TrimSpace(item.ProductID)
			product, err := loadProduct(ctx, repo, item.ProductID)
			if err != nil {
				return &LineError{Index: i + 1, Lines: len(req.Items), Err: err}
			}

			product.CostPrice = weightedCost(product.CostPrice, product.QuantityInStock, item.UnitCost, item.Qty)
			product.QuantityInStock += item.Qty
			if _, err := repo.UpdateProduct(ctx, *product); err != nil {
				return persistence("update product", err)
			}

			bill.Items = append(bill.Items, item)
			bill.TotalCost = bill.TotalCost.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Qty))))
		}

		var err error
		created, err = repo.CreatePurchaseBill(ctx, bill)
		if err != nil {
			return persistence("create purchase bill", err)
		}
		return nil
	})
	if err := settle("receive purchase", err); err != nil {
		return domain.PurchaseBill{}, err
	}

	s.logger.Info("purchase received",
		zap.String("purchase_id", created.ID),
		zap.String("supplier", created.SupplierName),
		zap.Int("items", len(created.Items)),
		zap.Stringer("total_cost", created.TotalCost),
	)
	return *created, nil
}

// weightedCost blends the current cost of oldQty units with incomingQty units
// bought at incomingCost, rounded to cents. Free or empty deliveries leave the
// cost alone; an empty shelf takes the incoming cost as is.
func weightedCost(oldCost decimal.Decimal, oldQty int, incomingCost decimal.Decimal, incomingQty int) decimal.Decimal {
	if incomingQty <= 0 || !incomingCost.IsPositive() {
		return oldCost
	}
	if oldQty <= 0 || !oldCost.IsPositive() {
		return incomingCost
	}
	oldValue := oldCost.Mul(decimal.NewFromInt(int64(oldQty)))
	incomingValue := incomingCost.Mul(decimal.NewFromInt(int64(incomingQty)))
	return oldValue.Add(incomingValue).DivRound(decimal.NewFromInt(int64(oldQty+incomingQty)), 2)
}
