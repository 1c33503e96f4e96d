package cache

import (
	"context"
	"time"

	"tokopos/internal/domain"
)

// ReportCache stores computed reports keyed by day ("2006-01-02") or month
// ("2006-01"). A miss is (nil, false, nil).
type ReportCache interface {
	GetDaily(ctx context.Context, date string) (*domain.DailyReport, bool, error)
	SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error
	GetMonthly(ctx context.Context, month string) (*domain.MonthlyReport, bool, error)
	SetMonthly(ctx context.Context, report *domain.MonthlyReport, ttl time.Duration) error
	// Invalidate drops the daily report of each date and the monthly report of
	// the month it falls in.
	Invalidate(ctx context.Context, dates ...string) error
}

func DailyKey(date string) string {
	return "report:daily:" + date
}

func MonthlyKey(month string) string {
	return "report:monthly:" + month
}

// keysFor expands dates into the cache keys they affect, without duplicates.
func keysFor(dates []string) []string {
	keys := make([]string, 0, len(dates)*2)
	seen := make(map[string]bool, len(dates)*2)
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, date := range dates {
		if len(date) < len("2006-01") {
			continue
		}
		add(DailyKey(date))
		add(MonthlyKey(date[:len("2006-01")]))
	}
	return keys
}

type NoopReportCache struct{}

func (NoopReportCache) GetDaily(_ context.Context, _ string) (*domain.DailyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetDaily(_ context.Context, _ *domain.DailyReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) GetMonthly(_ context.Context, _ string) (*domain.MonthlyReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetMonthly(_ context.Context, _ *domain.MonthlyReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
