package usecase

import (
	"context"
	"sync"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type stubAdapter struct {
	series models.Series
	limit  int
	fetch  func(call int, req domrepo.FetchRequest) models.Page

	mu      sync.Mutex
	windows []models.TimeWindow
	limits  []int
}

func (a *stubAdapter) Series() models.Series { return a.series }

func (a *stubAdapter) PageLimit() int {
	if a.limit == 0 {
		return 500
	}
	return a.limit
}

func (a *stubAdapter) Fetch(_ context.Context, req domrepo.FetchRequest) models.Page {
	a.mu.Lock()
	a.windows = append(a.windows, req.Window)
	a.limits = append(a.limits, req.Limit)
	call := len(a.windows)
	a.mu.Unlock()
	return a.fetch(call, req)
}

func (a *stubAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.windows)
}

func rec(ts time.Time, v float64) models.Record {
	return models.Record{Timestamp: ts, Fields: map[string]float64{"value": v}}
}

// hourly serves one record per hour inside [start, end) and never past last.
func hourly(series models.Series, last time.Time) *stubAdapter {
	return &stubAdapter{series: series, fetch: func(_ int, req domrepo.FetchRequest) models.Page {
		var page models.Page
		ts := req.Window.Start.Truncate(time.Hour)
		if ts.Before(req.Window.Start) {
			ts = ts.Add(time.Hour)
		}
		for ; ts.Before(req.Window.End) && !ts.After(last); ts = ts.Add(time.Hour) {
			page = append(page, rec(ts, float64(ts.Unix())))
		}
		return page
	}}
}

func empty(series models.Series) *stubAdapter {
	return &stubAdapter{series: series, fetch: func(int, domrepo.FetchRequest) models.Page { return nil }}
}

type countingPacer struct{ pauses int }

func (p *countingPacer) Pause(ctx context.Context) error {
	p.pauses++
	return ctx.Err()
}

type memCheckpointer struct {
	mu    sync.Mutex
	saved map[domrepo.CheckpointKey]*models.SeriesResult
	loads int
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{saved: make(map[domrepo.CheckpointKey]*models.SeriesResult)}
}

func (c *memCheckpointer) Load(_ context.Context, key domrepo.CheckpointKey) (*models.SeriesResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	return c.saved[key], nil
}

func (c *memCheckpointer) Save(_ context.Context, key domrepo.CheckpointKey, res *models.SeriesResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[key] = res
	return nil
}

type fakeSink struct {
	mu        sync.Mutex
	published []models.SeriesRecord
	stored    []models.SeriesRecord
	closed    bool
}

func (f *fakeSink) PublishBatch(_ context.Context, records []models.SeriesRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, records...)
	return nil
}

func (f *fakeSink) StoreBatch(_ context.Context, records []models.SeriesRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, records...)
	return nil
}

func (f *fakeSink) Init(context.Context) error   { return nil }
func (f *fakeSink) Health(context.Context) error { return nil }

func (f *fakeSink) Query(context.Context, domrepo.HistoryFilter) ([]models.Record, error) {
	return nil, nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func newTestEngine() *FetchEngine {
	return NewFetchEngine(NoPacer{}, nil, nil)
}
