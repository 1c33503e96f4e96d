package cache

import (
	"context"
	"testing"
	"time"

	"tokopos/internal/domain"
)

func TestKeysForExpandsDatesToDailyAndMonthly(t *testing.T) {
	keys := keysFor([]string{"2026-03-04", "2026-03-09", "2026-03-04", "bad"})

	want := []string{
		"report:daily:2026-03-04",
		"report:monthly:2026-03",
		"report:daily:2026-03-09",
	}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
}

func TestNoopReportCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c ReportCache = NoopReportCache{}

	if err := c.SetDaily(ctx, &domain.DailyReport{Date: "2026-03-04"}, time.Minute); err != nil {
		t.Fatalf("set daily: %v", err)
	}
	report, ok, err := c.GetDaily(ctx, "2026-03-04")
	if err != nil || ok || report != nil {
		t.Fatalf("expected miss, got report=%v ok=%v err=%v", report, ok, err)
	}
	monthly, ok, err := c.GetMonthly(ctx, "2026-03")
	if err != nil || ok || monthly != nil {
		t.Fatalf("expected miss, got report=%v ok=%v err=%v", monthly, ok, err)
	}
	if err := c.Invalidate(ctx, "2026-03-04"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
}
