package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
)

const day = 24 * time.Hour

func timestamps(records []models.Record) []time.Time {
	out := make([]time.Time, len(records))
	for i, r := range records {
		out[i] = r.Timestamp
	}
	return out
}

func TestFetchEngine_DayStep(t *testing.T) {
	// one record at the first day boundary inside each window
	adapter := &stubAdapter{series: models.SeriesOpenInterest, fetch: func(_ int, req domrepo.FetchRequest) models.Page {
		ts := req.Window.Start.Truncate(day)
		if ts.Before(req.Window.Start) {
			ts = ts.Add(day)
		}
		if !ts.Before(req.Window.End) {
			return nil
		}
		return models.Page{rec(ts, 1)}
	}}
	pacer := &countingPacer{}
	engine := NewFetchEngine(pacer, nil, nil)

	res, err := engine.Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Period: "1d",
		Window: models.TimeWindow{Start: t0, End: t0.Add(3 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{t0, t0.Add(day), t0.Add(2 * day)}, timestamps(res.Records))
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, models.StopReachedEnd, res.StopReason)
	assert.Equal(t, 4, res.Calls)
	assert.Equal(t, 4, pacer.pauses)
	require.NotNil(t, res.CoverageStart)
	assert.Equal(t, t0, *res.CoverageStart)
	assert.Equal(t, t0.Add(2*day), *res.CoverageEnd)
}

func TestFetchEngine_AllEmptyStopsAfterThreeCalls(t *testing.T) {
	adapter := empty(models.SeriesBasis)

	res, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Period: "1h",
		Window: models.TimeWindow{Start: t0, End: t0.Add(60 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, adapter.calls())
	assert.Equal(t, 3, res.Calls)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Records)
	assert.Nil(t, res.CoverageStart)
	assert.Equal(t, models.StopMaxFailures, res.StopReason)
}

func TestFetchEngine_NoWindowRepeatedAfterFailure(t *testing.T) {
	adapter := empty(models.SeriesBasis)

	_, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(60 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	require.Len(t, adapter.windows, 3)
	for i := 1; i < len(adapter.windows); i++ {
		prev, cur := adapter.windows[i-1], adapter.windows[i]
		assert.True(t, cur.Start.After(prev.End), "window %d starts at %s, previous ended at %s", i, cur.Start, prev.End)
		assert.Equal(t, prev.End.Add(time.Millisecond), cur.Start)
	}
}

func TestFetchEngine_FailureCounterResetsOnData(t *testing.T) {
	// None, data, None, None, None
	adapter := &stubAdapter{series: models.SeriesGlobalRatio, fetch: func(call int, req domrepo.FetchRequest) models.Page {
		if call == 2 {
			return models.Page{rec(req.Window.Start, 1)}
		}
		return nil
	}}

	res, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "ETHUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(60 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, adapter.calls())
	assert.Equal(t, models.StopMaxFailures, res.StopReason)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, t0.Add(day).Add(time.Millisecond), res.Records[0].Timestamp)
}

func TestFetchEngine_StallsOneCallAfterEndOfHistory(t *testing.T) {
	end := t0.Add(3 * day)
	reachedAt := 0
	base := hourly(models.SeriesOpenInterest, end)
	adapter := &stubAdapter{series: models.SeriesOpenInterest, fetch: func(call int, req domrepo.FetchRequest) models.Page {
		page := base.fetch(call, req)
		if len(page) == 0 && req.Window.Start.After(end) {
			// upstream keeps answering with its latest sample
			page = models.Page{rec(end, float64(end.Unix()))}
		}
		if newest, ok := page.Newest(); ok && newest.Equal(end) && reachedAt == 0 {
			reachedAt = call
		}
		return page
	}}

	res, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(30 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	require.NotZero(t, reachedAt)
	assert.Equal(t, models.StopStalled, res.StopReason)
	assert.Equal(t, reachedAt+1, res.Calls)
	assert.Equal(t, 73, res.Count)
	assert.Equal(t, end, *res.CoverageEnd)
}

func TestFetchEngine_CoverageMatchesHalfRanges(t *testing.T) {
	last := t0.Add(10 * day)
	mid := t0.Add(3 * day)
	finish := t0.Add(6 * day)
	run := func(w models.TimeWindow) []models.Record {
		res, err := newTestEngine().Run(context.Background(), hourly(models.SeriesKlines, last), SeriesRequest{
			Symbol: "BTCUSDT",
			Window: w,
			Step:   day,
		})
		require.NoError(t, err)
		return res.Records
	}

	whole := run(models.TimeWindow{Start: t0, End: finish})
	first := run(models.TimeWindow{Start: t0, End: mid})
	second := run(models.TimeWindow{Start: mid, End: finish})

	assert.Len(t, whole, 6*24)
	assert.Equal(t, timestamps(whole), timestamps(Merge(first, second)))
}

func TestFetchEngine_CursorFollowsNewestRecord(t *testing.T) {
	// the first page reaches past its window
	adapter := &stubAdapter{series: models.SeriesTopAccountRatio, fetch: func(call int, req domrepo.FetchRequest) models.Page {
		switch call {
		case 1:
			return models.Page{rec(t0, 1), rec(t0.Add(5*day), 2)}
		case 2:
			return models.Page{rec(t0.Add(6*day), 3)}
		}
		return nil
	}}

	res, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(30 * day)},
		Step:   day,
	})
	require.NoError(t, err)

	for i := 1; i < len(adapter.windows); i++ {
		assert.True(t, adapter.windows[i].Start.After(adapter.windows[i-1].Start))
	}
	assert.Equal(t, t0.Add(5*day).Add(time.Millisecond), adapter.windows[1].Start)
	assert.Equal(t, 3, res.Count)
}

func TestFetchEngine_PassesPageLimit(t *testing.T) {
	adapter := empty(models.SeriesFundingRate)
	adapter.limit = 1000

	_, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(day)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, adapter.limits)
	assert.Equal(t, 1000, adapter.limits[0])
	// funding rate step covers the whole range in one window
	assert.Equal(t, t0.Add(day), adapter.windows[0].End)
}

func TestFetchEngine_DropsSampleAtRequestEnd(t *testing.T) {
	// endTime inclusive, like the upstream
	adapter := &stubAdapter{series: models.SeriesOpenInterest, fetch: func(_ int, req domrepo.FetchRequest) models.Page {
		var page models.Page
		for ts := req.Window.Start.Truncate(time.Hour); !ts.After(req.Window.End); ts = ts.Add(time.Hour) {
			if !ts.Before(req.Window.Start) {
				page = append(page, rec(ts, 1))
			}
		}
		return page
	}}
	window := models.TimeWindow{Start: t0, End: t0.Add(2 * day)}

	res, err := newTestEngine().Run(context.Background(), adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Period: "1h",
		Window: window,
	})
	require.NoError(t, err)
	assert.Equal(t, 48, res.Count)
	assert.Equal(t, models.StopReachedEnd, res.StopReason)
	require.NotNil(t, res.CoverageEnd)
	assert.True(t, res.CoverageEnd.Before(window.End))
}

func TestFetchEngine_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &stubAdapter{series: models.SeriesBasis, fetch: func(call int, req domrepo.FetchRequest) models.Page {
		cancel()
		return models.Page{rec(req.Window.Start, 1)}
	}}

	res, err := newTestEngine().Run(ctx, adapter, SeriesRequest{
		Symbol: "BTCUSDT",
		Window: models.TimeWindow{Start: t0, End: t0.Add(30 * day)},
		Step:   day,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 1, adapter.calls())
}

func TestFetchEngine_InvalidWindow(t *testing.T) {
	_, err := newTestEngine().Run(context.Background(), empty(models.SeriesBasis), SeriesRequest{
		Window: models.TimeWindow{Start: t0, End: t0},
	})
	assert.Error(t, err)
}

func TestFetchState_Advance(t *testing.T) {
	end := t0.Add(10 * day)
	s := NewFetchState(t0)

	reason, done := s.Advance(nil, t0.Add(day), end, 3)
	assert.False(t, done)
	assert.Empty(t, reason)
	assert.Equal(t, 1, s.ConsecutiveFailures)
	assert.Equal(t, t0.Add(day).Add(time.Millisecond), s.Cursor)

	_, done = s.Advance(models.Page{rec(t0.Add(2*day), 1)}, t0.Add(3*day), end, 3)
	assert.False(t, done)
	assert.Zero(t, s.ConsecutiveFailures)
	assert.Equal(t, t0.Add(2*day), s.LastSeen)

	reason, done = s.Advance(models.Page{rec(t0.Add(2*day), 1)}, t0.Add(4*day), end, 3)
	assert.True(t, done)
	assert.Equal(t, models.StopStalled, reason)

	s = NewFetchState(t0)
	reason, done = s.Advance(models.Page{rec(end, 1)}, end, end, 3)
	assert.True(t, done)
	assert.Equal(t, models.StopReachedEnd, reason)
}

func TestSleepPacer(t *testing.T) {
	require.NoError(t, SleepPacer{Delay: time.Millisecond}.Pause(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepPacer{Delay: time.Hour}.Pause(ctx), context.Canceled)
	assert.ErrorIs(t, NoPacer{}.Pause(ctx), context.Canceled)
}
