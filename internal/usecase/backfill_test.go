package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	"FuturesHist/pkg/cache"
	"FuturesHist/pkg/metrics"
)

func newBackfill(sink string, adapters ...domrepo.Adapter) (*BackfillService, *fakeSink) {
	fs := &fakeSink{}
	agg := NewAggregator(newTestEngine(), adapters, nil, nil)
	return NewBackfillService(agg, fs, fs, nil, nil, sink), fs
}

func testRequest() AggregateRequest {
	return AggregateRequest{
		Symbol: "BTCUSDT",
		Period: "1h",
		Window: models.TimeWindow{Start: t0, End: t0.Add(day)},
	}
}

func TestBackfill_PublishesToKafka(t *testing.T) {
	svc, fs := newBackfill(SinkKafka, hourly(models.SeriesOpenInterest, t0.Add(10*day)), empty(models.SeriesBasis))

	bundle, err := svc.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Len(t, bundle.Populated(), 1)
	require.Len(t, fs.published, 24)
	assert.Empty(t, fs.stored)
	assert.Equal(t, "BTCUSDT", fs.published[0].Symbol)
	assert.Equal(t, "1h", fs.published[0].Period)
	assert.Equal(t, models.SeriesOpenInterest, fs.published[0].Series)
}

func TestBackfill_StoresToClickHouse(t *testing.T) {
	svc, fs := newBackfill(SinkClickHouse, hourly(models.SeriesKlines, t0.Add(10*day)))

	_, err := svc.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, fs.stored, 24)
	assert.Empty(t, fs.published)
}

func TestBackfill_NoDataSkipsSink(t *testing.T) {
	svc, fs := newBackfill(SinkKafka, empty(models.SeriesOpenInterest), empty(models.SeriesBasis))

	_, err := svc.Run(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, fs.published)
}

func TestBackfill_UnknownSink(t *testing.T) {
	svc, _ := newBackfill("s3", hourly(models.SeriesKlines, t0.Add(10*day)))

	_, err := svc.Run(context.Background(), testRequest())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestBackfill_RunSymbolsSkipsEmptySymbols(t *testing.T) {
	data := hourly(models.SeriesOpenInterest, t0.Add(10*day))
	adapter := &stubAdapter{series: models.SeriesOpenInterest, fetch: func(call int, req domrepo.FetchRequest) models.Page {
		if req.Symbol != "BTCUSDT" {
			return nil
		}
		return data.fetch(call, req)
	}}
	svc, fs := newBackfill(SinkNone, adapter)

	out, err := svc.RunSymbols(context.Background(), []string{"BTCUSDT", "NOPEUSDT"}, testRequest())
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT")
	assert.NotContains(t, out, "NOPEUSDT")
	assert.Empty(t, fs.published)
	assert.Empty(t, fs.stored)
}

func TestBackfill_Close(t *testing.T) {
	svc, fs := newBackfill(SinkNone)
	svc.Close()
	assert.True(t, fs.closed)
}

func jobPayload(t *testing.T, p models.BackfillJobPayload) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func TestBackfillJob_Handle(t *testing.T) {
	svc, fs := newBackfill(SinkKafka, hourly(models.SeriesOpenInterest, t0.Add(10*day)))
	locker := cache.NewMemoryCache()
	defer locker.Close()
	job := NewBackfillJob(svc, locker, nil)
	assert.Equal(t, BackfillJobType, job.Type())

	payload := models.BackfillJobPayload{Symbol: "BTCUSDT", Period: "1h", Start: t0, End: t0.Add(day)}
	require.NoError(t, job.Handle(context.Background(), jobPayload(t, payload)))
	assert.Len(t, fs.published, 24)

	// lock released after the run
	key := cache.GenerateKeyWithParams("lock:backfill", "BTCUSDT", "1h", t0.Unix(), t0.Add(day).Unix())
	ok, err := locker.TryLock(context.Background(), key, day)
	require.NoError(t, err)
	assert.True(t, ok)

	// held lock skips the run
	require.NoError(t, job.Handle(context.Background(), jobPayload(t, payload)))
	assert.Len(t, fs.published, 24)
}

func TestBackfillJob_NoDataIsNotRetried(t *testing.T) {
	svc, _ := newBackfill(SinkKafka, empty(models.SeriesOpenInterest))
	job := NewBackfillJob(svc, nil, nil)

	payload := models.BackfillJobPayload{Symbol: "BTCUSDT", Period: "1h", Start: t0, End: t0.Add(day)}
	assert.NoError(t, job.Handle(context.Background(), jobPayload(t, payload)))
}

func TestBackfillLockTTL(t *testing.T) {
	short := models.BackfillJobPayload{Symbol: "BTCUSDT", Period: "1h", Start: t0, End: t0.Add(day)}
	assert.Equal(t, minBackfillLockTTL, backfillLockTTL(short, models.TimeWindow{Start: short.Start, End: short.End}))

	// a year at 5m: 210 windows per series
	long := models.BackfillJobPayload{Symbol: "BTCUSDT", Period: "5m", Start: t0, End: t0.Add(365 * day)}
	window := models.TimeWindow{Start: long.Start, End: long.End}
	ttl := backfillLockTTL(long, window)
	assert.Greater(t, ttl, minBackfillLockTTL)

	long.Series = []models.Series{models.SeriesKlines}
	assert.Less(t, backfillLockTTL(long, window), ttl)
	assert.GreaterOrEqual(t, backfillLockTTL(long, window), 210*lockBudgetPerCall)
}

func TestBackfillJob_BadPayload(t *testing.T) {
	svc, _ := newBackfill(SinkNone)
	job := NewBackfillJob(svc, nil, nil)
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"symbol":`)))
}

func TestKafkaRecordsHandler_Handle(t *testing.T) {
	fs := &fakeSink{}
	h := NewKafkaRecordsHandler("futures.history.records", fs, metrics.Nop{})
	assert.Equal(t, "futures.history.records", h.Topic())

	value, err := json.Marshal(models.SeriesRecord{
		Symbol: "BTCUSDT",
		Period: "1h",
		Series: models.SeriesFundingRate,
		Record: rec(t0, 0.0001),
	})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), []byte("BTCUSDT/1h/funding_rate"), value))
	require.Len(t, fs.stored, 1)
	assert.Equal(t, models.SeriesFundingRate, fs.stored[0].Series)
	assert.True(t, fs.stored[0].Record.Timestamp.Equal(t0))
	assert.InDelta(t, 0.0001, fs.stored[0].Record.Fields["value"], 1e-12)

	assert.Error(t, h.Handle(context.Background(), nil, []byte("not json")))
}
