package usecase

import (
	"context"
	"fmt"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	applogger "FuturesHist/pkg/logger"
)

// AggregateRequest selects the series to fetch for one symbol.
type AggregateRequest struct {
	Symbol string
	Period string
	Window models.TimeWindow
	// Series limits the run. Empty means every adapter.
	Series []models.Series
}

// Aggregator runs the fetch engine for each series in turn.
type Aggregator struct {
	engine       *FetchEngine
	adapters     []domrepo.Adapter
	checkpointer domrepo.Checkpointer
	logger       *applogger.Logger
}

// NewAggregator keeps adapters in the given order. checkpointer may be nil.
func NewAggregator(engine *FetchEngine, adapters []domrepo.Adapter, checkpointer domrepo.Checkpointer, l *applogger.Logger) *Aggregator {
	if l == nil {
		l = applogger.Nop()
	}
	return &Aggregator{engine: engine, adapters: adapters, checkpointer: checkpointer, logger: l}
}

// Run returns one entry per selected series. Series without data map to
// nil. The only error is cancellation; entries finished before it are lost
// to the caller but stay checkpointed.
func (a *Aggregator) Run(ctx context.Context, req AggregateRequest) (models.Bundle, error) {
	period := req.Period
	if period == "" {
		period = domrepo.DefaultPeriod
	}
	selected, err := a.selectAdapters(req.Series)
	if err != nil {
		return nil, err
	}

	bundle := make(models.Bundle, len(selected))
	for _, adapter := range selected {
		series := adapter.Series()
		key := domrepo.CheckpointKey{Symbol: req.Symbol, Period: period, Series: series, Window: req.Window}

		if res := a.loadCheckpoint(ctx, key); res != nil {
			bundle[series] = present(res)
			continue
		}

		res, err := a.engine.Run(ctx, adapter, SeriesRequest{
			Symbol: req.Symbol,
			Period: period,
			Window: req.Window,
			Step:   domrepo.StepForSeries(series, period),
		})
		if err != nil {
			return nil, err
		}
		a.saveCheckpoint(ctx, key, res)
		bundle[series] = present(res)
	}
	return bundle, nil
}

func (a *Aggregator) selectAdapters(series []models.Series) ([]domrepo.Adapter, error) {
	if len(series) == 0 {
		return a.adapters, nil
	}
	want := make(map[models.Series]bool, len(series))
	for _, s := range series {
		want[s] = true
	}
	out := make([]domrepo.Adapter, 0, len(series))
	for _, ad := range a.adapters {
		if want[ad.Series()] {
			out = append(out, ad)
			delete(want, ad.Series())
		}
	}
	for s := range want {
		return nil, fmt.Errorf("no adapter for series %q", s)
	}
	return out, nil
}

func (a *Aggregator) loadCheckpoint(ctx context.Context, key domrepo.CheckpointKey) *models.SeriesResult {
	if a.checkpointer == nil {
		return nil
	}
	res, err := a.checkpointer.Load(ctx, key)
	if err != nil {
		a.logger.Warn("checkpoint load failed",
			applogger.String("series", string(key.Series)),
			applogger.String("symbol", key.Symbol),
			applogger.Error(err))
		return nil
	}
	if res != nil && res.Empty() {
		return nil
	}
	if res != nil {
		a.logger.Info("series restored from checkpoint",
			applogger.String("series", string(key.Series)),
			applogger.String("symbol", key.Symbol),
			applogger.Int("records", res.Count))
	}
	return res
}

// Only results with records are saved. Empty runs, including those that hit
// the failure bound, are fetched again next time.
func (a *Aggregator) saveCheckpoint(ctx context.Context, key domrepo.CheckpointKey, res *models.SeriesResult) {
	if a.checkpointer == nil || res.StopReason == models.StopMaxFailures || res.Empty() {
		return
	}
	if err := a.checkpointer.Save(ctx, key, res); err != nil {
		a.logger.Warn("checkpoint save failed",
			applogger.String("series", string(key.Series)),
			applogger.String("symbol", key.Symbol),
			applogger.Error(err))
	}
}

func present(res *models.SeriesResult) *models.SeriesResult {
	if res.Empty() {
		return nil
	}
	return res
}
