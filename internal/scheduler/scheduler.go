package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tokopos/internal/domain"
)

// ReportWarmer is the slice of the service the end-of-day job needs.
type ReportWarmer interface {
	WarmDailyReport(ctx context.Context, day time.Time) (domain.DailyReport, error)
}

// Scheduler runs the end-of-day close: it rebuilds the report of the day that
// just ended, logs the totals and leaves the result in the report cache.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	warmer ReportWarmer
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func New(spec string, loc *time.Location, warmer ReportWarmer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
		warmer: warmer,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop. An invalid schedule is
// returned as an error and nothing is started.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.closeDay); err != nil {
		return err
	}
	s.logger.Info("starting scheduler", zap.String("end_of_day", s.spec))
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) closeDay() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_, _ = s.RunEndOfDay(ctx)
}

// RunEndOfDay builds yesterday's report in the shop timezone.
func (s *Scheduler) RunEndOfDay(ctx context.Context) (domain.DailyReport, error) {
	yesterday := s.now().In(s.loc).AddDate(0, 0, -1)

	report, err := s.warmer.WarmDailyReport(ctx, yesterday)
	if err != nil {
		s.logger.Error("end of day report failed", zap.Error(err))
		return domain.DailyReport{}, err
	}

	s.logger.Info("end of day",
		zap.String("date", report.Date),
		zap.Int64("sales", report.Sales),
		zap.Stringer("revenue", report.Revenue),
		zap.Stringer("gross_profit", report.GrossProfit),
		zap.Stringer("net_profit", report.NetProfit),
	)
	return report, nil
}
