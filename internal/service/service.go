package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tokopos/internal/cache"
	"tokopos/internal/domain"
	"tokopos/internal/pricing"
	"tokopos/internal/report"
	"tokopos/internal/store"
)

const defaultReportTTL = 10 * time.Minute

// Service is the shop's business layer. Every operation that moves stock or
// touches a report's inputs takes writeMu, so at most one checkout, cancel,
// purchase or expense runs at a time. Report builds hold the read side until
// the result is cached, so a cached report never predates a committed write.
type Service struct {
	repo      store.TxRepository
	reports   cache.ReportCache
	logger    *zap.Logger
	loc       *time.Location
	reportTTL time.Duration
	currency  string
	now       func() time.Time

	writeMu sync.RWMutex
}

type Option func(*Service)

// WithLocation sets the shop timezone used to bucket sales into days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithReportTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.reportTTL = ttl
		}
	}
}

// WithDefaultCurrency is reported until the shop saves its own currency code.
func WithDefaultCurrency(code string) Option {
	return func(s *Service) {
		if normalized, ok := normalizeCurrency(code); ok {
			s.currency = normalized
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.TxRepository, reports cache.ReportCache, logger *zap.Logger, opts ...Option) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:      repo,
		reports:   reports,
		logger:    logger,
		loc:       time.UTC,
		reportTTL: defaultReportTTL,
		currency:  "USD",
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, persistence("list products", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := loadProduct(ctx, s.repo, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, invalid("barcode is required")
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, persistence("get product by barcode", err)
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" {
		return domain.Product{}, invalid("name is required")
	}
	if !nonNegative(req.CostPrice, req.SellingPrice) || (req.WholesalePrice.Valid && req.WholesalePrice.Decimal.IsNegative()) {
		return domain.Product{}, invalid("prices must not be negative")
	}
	if req.InitialStock < 0 {
		return domain.Product{}, invalid("initial stock must not be negative")
	}
	if !pricing.ValidateTiers(req.PriceRanges) {
		return domain.Product{}, invalid("price ranges need 1 <= min <= max and a non-negative price")
	}

	product := domain.Product{
		Name:                    req.Name,
		Barcode:                 req.Barcode,
		CostPrice:               req.CostPrice,
		SellingPrice:            req.SellingPrice,
		WholesalePrice:          req.WholesalePrice,
		QuantityInStock:         req.InitialStock,
		HasQuantityBasedPricing: req.HasQuantityBasedPricing,
	}

	var created *domain.Product
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		var err error
		created, err = repo.CreateProduct(ctx, product)
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateBarcode
		}
		if err != nil {
			return persistence("create product", err)
		}
		if len(req.PriceRanges) > 0 {
			if err := repo.ReplacePriceRanges(ctx, created.ID, toPriceRanges(created.ID, req.PriceRanges)); err != nil {
				return persistence("replace price ranges", err)
			}
		}
		return nil
	})
	if err := settle("create product", err); err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product created",
		zap.String("product_id", created.ID),
		zap.String("name", created.Name),
		zap.Int("stock", created.QuantityInStock),
	)
	return *created, nil
}

// UpdateProduct edits catalogue fields. Stock only moves through sales,
// cancellations and purchases.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	var saved *domain.Product
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		existing, err := loadProduct(ctx, repo, strings.TrimSpace(id))
		if err != nil {
			return err
		}

		updated := *existing
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return invalid("name is required")
			}
			updated.Name = name
		}
		if req.Barcode != nil {
			updated.Barcode = strings.TrimSpace(*req.Barcode)
		}
		if req.CostPrice != nil {
			updated.CostPrice = *req.CostPrice
		}
		if req.SellingPrice != nil {
			updated.SellingPrice = *req.SellingPrice
		}
		if req.WholesalePrice != nil {
			updated.WholesalePrice = *req.WholesalePrice
		}
		if req.HasQuantityBasedPricing != nil {
			updated.HasQuantityBasedPricing = *req.HasQuantityBasedPricing
		}
		if !nonNegative(updated.CostPrice, updated.SellingPrice) || (updated.WholesalePrice.Valid && updated.WholesalePrice.Decimal.IsNegative()) {
			return invalid("prices must not be negative")
		}

		saved, err = repo.UpdateProduct(ctx, updated)
		if errors.Is(err, store.ErrConflict) {
			return ErrDuplicateBarcode
		}
		if err != nil {
			return persistence("update product", err)
		}
		return nil
	})
	if err := settle("update product", err); err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) ListPriceRanges(ctx context.Context, productID string) ([]domain.PriceRange, error) {
	if _, err := loadProduct(ctx, s.repo, productID); err != nil {
		return nil, err
	}
	ranges, err := s.repo.ListPriceRanges(ctx, productID)
	if err != nil {
		return nil, persistence("list price ranges", err)
	}
	return ranges, nil
}

// ReplacePriceRanges swaps the product's whole tier table. An empty input
// clears it. Overlapping tiers are accepted.
func (s *Service) ReplacePriceRanges(ctx context.Context, productID string, inputs []domain.PriceRangeInput) ([]domain.PriceRange, error) {
	if !pricing.ValidateTiers(inputs) {
		return nil, invalid("price ranges need 1 <= min <= max and a non-negative price")
	}

	var ranges []domain.PriceRange
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		if _, err := loadProduct(ctx, repo, productID); err != nil {
			return err
		}
		if err := repo.ReplacePriceRanges(ctx, productID, toPriceRanges(productID, inputs)); err != nil {
			return persistence("replace price ranges", err)
		}
		var err error
		ranges, err = repo.ListPriceRanges(ctx, productID)
		if err != nil {
			return persistence("list price ranges", err)
		}
		return nil
	})
	if err := settle("replace price ranges", err); err != nil {
		return nil, err
	}

	s.logger.Info("price ranges replaced", zap.String("product_id", productID), zap.Int("tiers", len(ranges)))
	return ranges, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, persistence("get settings", err)
	}
	return s.withDefaults(settings), nil
}

func (s *Service) withDefaults(settings domain.Settings) domain.Settings {
	if settings.CurrencyCode == "" {
		settings.CurrencyCode = s.currency
	}
	return settings
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	var saved domain.Settings
	err := s.repo.WithinTx(ctx, func(repo store.Repository) error {
		settings, err := repo.GetSettings(ctx)
		if err != nil {
			return persistence("get settings", err)
		}
		if req.WholesaleModeEnabled != nil {
			settings.WholesaleModeEnabled = *req.WholesaleModeEnabled
		}
		if req.CurrencyCode != nil {
			code, ok := normalizeCurrency(*req.CurrencyCode)
			if !ok {
				return invalid("currency code must be 3 letters")
			}
			settings.CurrencyCode = code
		}
		if err := repo.SaveSettings(ctx, settings); err != nil {
			return persistence("save settings", err)
		}
		saved = s.withDefaults(settings)
		return nil
	})
	if err := settle("update settings", err); err != nil {
		return domain.Settings{}, err
	}

	s.logger.Info("settings updated",
		zap.Bool("wholesale_mode", saved.WholesaleModeEnabled),
		zap.String("currency", saved.CurrencyCode),
	)
	return saved, nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if req.Description == "" {
		return domain.Expense{}, invalid("description is required")
	}
	if req.Amount.IsNegative() {
		return domain.Expense{}, invalid("amount must not be negative")
	}

	date := s.now()
	if strings.TrimSpace(req.Date) != "" {
		parsed, err := s.parseDay(req.Date)
		if err != nil {
			return domain.Expense{}, err
		}
		date = parsed
	}
	if req.Category == "" {
		req.Category = "general"
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		Date:        date.UTC(),
	})
	if err != nil {
		return domain.Expense{}, persistence("create expense", err)
	}

	s.invalidateReports(ctx, created.Date)
	return *created, nil
}

// ListExpenses returns the expenses of month ("2006-01"), or of the current
// month when month is empty.
func (s *Service) ListExpenses(ctx context.Context, month string) ([]domain.Expense, error) {
	anchor, err := s.parseMonth(month)
	if err != nil {
		return nil, err
	}
	from, to := report.MonthBounds(anchor, s.loc)
	expenses, err := s.repo.ListExpensesInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return nil, persistence("list expenses", err)
	}
	return expenses, nil
}

func loadProduct(ctx context.Context, repo store.Repository, id string) (*domain.Product, error) {
	if id == "" {
		return nil, ErrProductNotFound
	}
	product, err := repo.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, persistence("get product", err)
	}
	return product, nil
}

func toPriceRanges(productID string, inputs []domain.PriceRangeInput) []domain.PriceRange {
	ranges := make([]domain.PriceRange, 0, len(inputs))
	for _, in := range inputs {
		ranges = append(ranges, domain.PriceRange{
			ProductID:   productID,
			MinQuantity: in.MinQuantity,
			MaxQuantity: in.MaxQuantity,
			Price:       in.Price,
		})
	}
	return ranges
}

func normalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return code, true
}

func (s *Service) parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.now(), nil
	}
	parsed, err := time.ParseInLocation(report.DayLayout, value, s.loc)
	if err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Time{}, invalid("date %q must be YYYY-MM-DD", value)
}

func (s *Service) parseMonth(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.now(), nil
	}
	parsed, err := time.ParseInLocation(report.MonthLayout, value, s.loc)
	if err != nil {
		return time.Time{}, invalid("month %q must be YYYY-MM", value)
	}
	return parsed, nil
}

// invalidateReports drops cached reports covering the given instants. Cache
// failures are logged and otherwise ignored; the store stays authoritative.
func (s *Service) invalidateReports(ctx context.Context, instants ...time.Time) {
	dates := make([]string, 0, len(instants))
	for _, at := range instants {
		dates = append(dates, at.In(s.loc).Format(report.DayLayout))
	}
	if err := s.reports.Invalidate(ctx, dates...); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Strings("dates", dates), zap.Error(err))
	}
}
