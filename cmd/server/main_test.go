package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"tokopos/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		HTTPAddr:              "127.0.0.1:0",
		ReportCacheTTLSeconds: 60,
		ShopTimezone:          "UTC",
		EndOfDayCron:          "5 0 * * *",
		LogLevel:              "info",
		DefaultCurrency:       "IDR",
	}
}

func TestBuildAppFallsBackToSeededMemoryStore(t *testing.T) {
	a, err := buildApp(context.Background(), memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer a.close(zap.NewNop())

	products, err := a.service.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded catalogue")
	}

	settings, err := a.service.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.CurrencyCode != "IDR" {
		t.Fatalf("expected configured currency IDR, got %q", settings.CurrencyCode)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
}

func TestBuildAppRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.ShopTimezone = "Mars/Olympus"
	if _, err := buildApp(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatalf("expected unknown timezone to be rejected")
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	cfg := memoryConfig()
	cfg.EndOfDayCron = "not a schedule"
	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	if err := a.scheduler.Start(); err == nil {
		a.scheduler.Stop()
		t.Fatalf("expected invalid cron spec to fail")
	}
}
