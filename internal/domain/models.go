package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                      string              `json:"id"`
	Name                    string              `json:"name"`
	Barcode                 string              `json:"barcode,omitempty"`
	CostPrice               decimal.Decimal     `json:"cost_price"`
	SellingPrice            decimal.Decimal     `json:"selling_price"`
	WholesalePrice          decimal.NullDecimal `json:"wholesale_price"`
	QuantityInStock         int                 `json:"quantity_in_stock"`
	HasQuantityBasedPricing bool                `json:"has_quantity_based_pricing"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name                    string              `json:"name"`
	Barcode                 string              `json:"barcode"`
	CostPrice               decimal.Decimal     `json:"cost_price"`
	SellingPrice            decimal.Decimal     `json:"selling_price"`
	WholesalePrice          decimal.NullDecimal `json:"wholesale_price"`
	InitialStock            int                 `json:"initial_stock"`
	HasQuantityBasedPricing bool                `json:"has_quantity_based_pricing"`
	PriceRanges             []PriceRangeInput   `json:"price_ranges,omitempty"`
}

type ProductUpdateRequest struct {
	Name                    *string              `json:"name,omitempty"`
	Barcode                 *string              `json:"barcode,omitempty"`
	CostPrice               *decimal.Decimal     `json:"cost_price,omitempty"`
	SellingPrice            *decimal.Decimal     `json:"selling_price,omitempty"`
	WholesalePrice          *decimal.NullDecimal `json:"wholesale_price,omitempty"`
	HasQuantityBasedPricing *bool                `json:"has_quantity_based_pricing,omitempty"`
}

// PriceRange is one quantity tier of a product. Price is per unit and applies to
// the whole line quantity once the tier matches.
type PriceRange struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity int             `json:"max_quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Contains reports whether qty falls inside the tier, bounds inclusive.
func (r PriceRange) Contains(qty int) bool {
	return r.MinQuantity <= qty && qty <= r.MaxQuantity
}

type PriceRangeInput struct {
	MinQuantity int             `json:"min_quantity"`
	MaxQuantity int             `json:"max_quantity"`
	Price       decimal.Decimal `json:"price"`
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentVisa PaymentMethod = "VISA"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentVisa
}

// Sale is one recorded line of a checkout. ProductName and CostPrice are copied
// from the product when the sale is created and are never re-derived.
type Sale struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	QuantitySold   int             `json:"quantity_sold"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	Profit         decimal.Decimal `json:"profit"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	IsWholesale    bool            `json:"is_wholesale"`
	IsCancelled    bool            `json:"is_cancelled"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	SaleDate       time.Time       `json:"sale_date"`
}

// Cost is the cost of goods for this sale line.
func (s Sale) Cost() decimal.Decimal {
	return s.CostPrice.Mul(decimal.NewFromInt(int64(s.QuantitySold)))
}

type SaleRequest struct {
	ProductID      string          `json:"product_id"`
	QuantitySold   int             `json:"quantity_sold"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	IsWholesale    bool            `json:"is_wholesale"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type CartLine struct {
	ProductID      string          `json:"product_id"`
	Qty            int             `json:"qty"`
	IsWholesale    bool            `json:"is_wholesale"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type CheckoutRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
	Lines         []CartLine    `json:"lines"`
}

type Bill struct {
	TransactionID string          `json:"transaction_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Sales         []Sale          `json:"sales"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Profit        decimal.Decimal `json:"profit"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CartPreviewLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	PriceSource string          `json:"price_source"`
	InStock     int             `json:"in_stock"`
	Shortfall   int             `json:"shortfall"`
}

type CartPreview struct {
	Lines       []CartPreviewLine `json:"lines"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	CanCheckout bool              `json:"can_checkout"`
}

type Expense struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        time.Time       `json:"date"`
}

type ExpenseCreateRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date,omitempty"`
}

type Settings struct {
	WholesaleModeEnabled bool   `json:"wholesale_mode_enabled"`
	CurrencyCode         string `json:"currency_code"`
}

type PurchaseItem struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type PurchaseBill struct {
	ID           string          `json:"id"`
	SupplierName string          `json:"supplier_name"`
	Items        []PurchaseItem  `json:"items"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	ReceivedAt   time.Time       `json:"received_at"`
}

type PurchaseCreateRequest struct {
	SupplierName string         `json:"supplier_name"`
	Items        []PurchaseItem `json:"items"`
}

type PaymentBreakdown struct {
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Sales         int64           `json:"sales"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type Summary struct {
	Sales        int64              `json:"sales"`
	UnitsSold    int64              `json:"units_sold"`
	Revenue      decimal.Decimal    `json:"revenue"`
	COGS         decimal.Decimal    `json:"cogs"`
	GrossProfit  decimal.Decimal    `json:"gross_profit"`
	Expenses     int64              `json:"expenses"`
	ExpenseTotal decimal.Decimal    `json:"expense_total"`
	NetProfit    decimal.Decimal    `json:"net_profit"`
	ByPayment    []PaymentBreakdown `json:"by_payment"`
}

type DailyReport struct {
	Date         string `json:"date"`
	CurrencyCode string `json:"currency_code,omitempty"`
	Summary
}

type MonthlyReport struct {
	Month        string        `json:"month"`
	CurrencyCode string        `json:"currency_code,omitempty"`
	Days         []DailyReport `json:"days"`
	Totals       Summary       `json:"totals"`
}

type SettingsUpdateRequest struct {
	WholesaleModeEnabled *bool   `json:"wholesale_mode_enabled,omitempty"`
	CurrencyCode         *string `json:"currency_code,omitempty"`
}
