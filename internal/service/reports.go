package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tokopos/internal/domain"
	"tokopos/internal/report"
)

// DailyReport returns the summary for date ("2006-01-02" in the shop
// timezone), today when date is empty. Reports are served from the cache when
// possible.
func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	key := day.In(s.loc).Format(report.DayLayout)
	if cached, ok, err := s.reports.GetDaily(ctx, key); err != nil {
		s.logger.Warn("report cache read failed", zap.String("date", key), zap.Error(err))
	} else if ok {
		cached.CurrencyCode = settings.CurrencyCode
		return *cached, nil
	}

	built, err := s.BuildDailyReport(ctx, day)
	if err != nil {
		return domain.DailyReport{}, err
	}
	if err := s.reports.SetDaily(ctx, &built, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("date", key), zap.Error(err))
	}
	built.CurrencyCode = settings.CurrencyCode
	return built, nil
}

// BuildDailyReport aggregates straight from the store, bypassing the cache.
func (s *Service) BuildDailyReport(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	from, to := report.DayBounds(day, s.loc)
	sales, err := s.repo.ListSalesInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return domain.DailyReport{}, persistence("list sales", err)
	}
	expenses, err := s.repo.ListExpensesInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return domain.DailyReport{}, persistence("list expenses", err)
	}
	return report.Daily(day, s.loc, sales, expenses), nil
}

// MonthlyReport returns per-day reports plus totals for month ("2006-01"),
// the current month when empty.
func (s *Service) MonthlyReport(ctx context.Context, month string) (domain.MonthlyReport, error) {
	anchor, err := s.parseMonth(month)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.MonthlyReport{}, err
	}

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	key := anchor.In(s.loc).Format(report.MonthLayout)
	if cached, ok, err := s.reports.GetMonthly(ctx, key); err != nil {
		s.logger.Warn("report cache read failed", zap.String("month", key), zap.Error(err))
	} else if ok {
		return withCurrency(*cached, settings.CurrencyCode), nil
	}

	from, to := report.MonthBounds(anchor, s.loc)
	sales, err := s.repo.ListSalesInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return domain.MonthlyReport{}, persistence("list sales", err)
	}
	expenses, err := s.repo.ListExpensesInRange(ctx, from.UTC(), to.UTC())
	if err != nil {
		return domain.MonthlyReport{}, persistence("list expenses", err)
	}

	built := report.Monthly(anchor, s.loc, sales, expenses)
	if err := s.reports.SetMonthly(ctx, &built, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("month", key), zap.Error(err))
	}
	return withCurrency(built, settings.CurrencyCode), nil
}

// WarmDailyReport rebuilds the report for day and stores it in the cache.
func (s *Service) WarmDailyReport(ctx context.Context, day time.Time) (domain.DailyReport, error) {
	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	built, err := s.BuildDailyReport(ctx, day)
	if err != nil {
		return domain.DailyReport{}, err
	}
	if err := s.reports.SetDaily(ctx, &built, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("date", built.Date), zap.Error(err))
	}
	return built, nil
}

func withCurrency(monthly domain.MonthlyReport, code string) domain.MonthlyReport {
	monthly.CurrencyCode = code
	days := make([]domain.DailyReport, len(monthly.Days))
	for i, day := range monthly.Days {
		day.CurrencyCode = code
		days[i] = day
	}
	monthly.Days = days
	return monthly
}
