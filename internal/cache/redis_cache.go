package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokopos/internal/domain"
)

type RedisReportCache struct {
	client redis.Cmdable
	closer func() error
}

func NewRedisReportCache(addr string, password string, db int) *RedisReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisReportCache{client: client, closer: client.Close}
}

// NewRedisReportCacheWithClient wraps an existing client; Close is then the
// caller's job.
func NewRedisReportCacheWithClient(client redis.Cmdable) *RedisReportCache {
	return &RedisReportCache{client: client, closer: func() error { return nil }}
}

func (c *RedisReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReportCache) Close() error {
	return c.closer()
}

func (c *RedisReportCache) GetDaily(ctx context.Context, date string) (*domain.DailyReport, bool, error) {
	var report domain.DailyReport
	ok, err := c.get(ctx, DailyKey(date), &report)
	if !ok || err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) SetDaily(ctx context.Context, report *domain.DailyReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	return c.set(ctx, DailyKey(report.Date), report, ttl)
}

func (c *RedisReportCache) GetMonthly(ctx context.Context, month string) (*domain.MonthlyReport, bool, error) {
	var report domain.MonthlyReport
	ok, err := c.get(ctx, MonthlyKey(month), &report)
	if !ok || err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) SetMonthly(ctx context.Context, report *domain.MonthlyReport, ttl time.Duration) error {
	if report == nil {
		return nil
	}
	return c.set(ctx, MonthlyKey(report.Month), report, ttl)
}

func (c *RedisReportCache) Invalidate(ctx context.Context, dates ...string) error {
	keys := keysFor(dates)
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisReportCache) get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisReportCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
