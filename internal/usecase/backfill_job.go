package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	"FuturesHist/pkg/cache"
	applogger "FuturesHist/pkg/logger"
	"FuturesHist/pkg/queue"
)

// BackfillJobType is the queue message type of a backfill job.
const BackfillJobType = "backfill"

const (
	minBackfillLockTTL = 2 * time.Hour
	// pacing delay plus a full retry cycle of the transport
	lockBudgetPerCall = DefaultInterRequestDelay + 15*time.Second
)

// backfillLockTTL budgets every window of every requested series so the
// lock outlives the run.
func backfillLockTTL(p models.BackfillJobPayload, window models.TimeWindow) time.Duration {
	period := p.Period
	if period == "" {
		period = domrepo.DefaultPeriod
	}
	series := p.Series
	if len(series) == 0 {
		series = models.AllSeries()
	}
	var calls int64
	for _, s := range series {
		step := domrepo.StepForSeries(s, period)
		calls += int64(window.End.Sub(window.Start)/step) + 2
	}
	ttl := time.Duration(calls) * lockBudgetPerCall
	if ttl < minBackfillLockTTL {
		return minBackfillLockTTL
	}
	return ttl
}

// BackfillJob runs queued backfills. Only one job per symbol, period and
// range runs at a time.
type BackfillJob struct {
	svc    *BackfillService
	locker domrepo.Locker
	logger *applogger.Logger
}

// NewBackfillJob creates the job. locker may be nil.
func NewBackfillJob(svc *BackfillService, locker domrepo.Locker, l *applogger.Logger) *BackfillJob {
	if l == nil {
		l = applogger.Nop()
	}
	return &BackfillJob{svc: svc, locker: locker, logger: l}
}

func (j *BackfillJob) Name() string { return "backfill-job" }
func (j *BackfillJob) Type() string { return BackfillJobType }

func (j *BackfillJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[models.BackfillJobPayload](payload)
	if err != nil {
		return err
	}
	window := models.TimeWindow{Start: p.Start.UTC(), End: p.End.UTC()}
	log := j.logger.With(applogger.String("symbol", p.Symbol), applogger.String("window", window.String()))

	if j.locker != nil {
		key := cache.GenerateKeyWithParams("lock:backfill", p.Symbol, p.Period, window.Start.Unix(), window.End.Unix())
		ok, err := j.locker.TryLock(ctx, key, backfillLockTTL(*p, window))
		if err != nil {
			return err
		}
		if !ok {
			log.Info("backfill already running, skipping")
			return nil
		}
		defer func() { _ = j.locker.Unlock(context.Background(), key) }()
	}

	_, err = j.svc.Run(ctx, AggregateRequest{
		Symbol: p.Symbol,
		Period: p.Period,
		Window: window,
		Series: p.Series,
	})
	if errors.Is(err, ErrNoData) {
		log.Warn("backfill produced no data")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("backfill job done")
	return nil
}

var _ queue.Job = (*BackfillJob)(nil)
