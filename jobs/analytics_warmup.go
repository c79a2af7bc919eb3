package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/invoicely/invoicely/internal/analytics"
	"github.com/invoicely/invoicely/internal/dates"
	jobmetrics "github.com/invoicely/invoicely/internal/jobs"
	"github.com/invoicely/invoicely/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Analytics is the subset of the analytics service the warmup drives.
type Analytics interface {
	ComputeAnalytics(ctx context.Context, filter analytics.Filter) (analytics.Result, error)
	ComputeStatistics(ctx context.Context) (analytics.Statistics, error)
}

// AnalyticsWarmupJob recomputes the dashboard views so the first reader after
// a write or a cache expiry is served from Redis.
type AnalyticsWarmupJob struct {
	Analytics Analytics
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(svc Analytics, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = ReasonManual
	}
	return j.Run(ctx, payload)
}

// Run performs one warmup pass outside of Asynq.
func (j *AnalyticsWarmupJob) Run(ctx context.Context, payload AnalyticsWarmupPayload) (resultErr error) {
	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	logger.Info("starting analytics warmup")
	start := j.now()

	if _, err := j.Analytics.ComputeStatistics(ctx); err != nil {
		logger.Error("warm statistics", slog.Any("error", err))
		return err
	}
	j.metrics().AddWarmed("statistics", 1)

	warmed := 0
	for _, currency := range ledger.SupportedCurrencies {
		n, err := j.warmCurrency(ctx, currency, payload.TrailingMonths, start)
		warmed += n
		if err != nil {
			logger.Error("warm currency", slog.String("currency", currency.Code()), slog.Any("error", err))
			j.metrics().AddWarmed("analytics", warmed)
			return err
		}
	}
	j.metrics().AddWarmed("analytics", warmed)

	logger.Info("completed analytics warmup", slog.Int("views", warmed+1), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *AnalyticsWarmupJob) warmCurrency(ctx context.Context, currency ledger.Currency, trailing int, now time.Time) (int, error) {
	scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	filters := []analytics.Filter{{Interval: dates.DefaultInterval, Currency: currency}}
	if trailing > 0 {
		to := now
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(trailing - 1), 0)
		filters = append(filters, analytics.Filter{From: &from, To: &to, Interval: dates.DefaultInterval, Currency: currency})
	}
	for i, filter := range filters {
		if _, err := j.Analytics.ComputeAnalytics(scopeCtx, filter); err != nil {
			return i, err
		}
	}
	return len(filters), nil
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
