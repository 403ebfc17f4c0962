package usecase

import (
	"context"
	"fmt"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	applogger "FuturesHist/pkg/logger"
	"FuturesHist/pkg/metrics"
)

const (
	// DefaultInterRequestDelay is the pause between consecutive calls of one series.
	DefaultInterRequestDelay = 2 * time.Second
	// DefaultMaxConsecutiveFailures stops a series after this many empty calls in a row.
	DefaultMaxConsecutiveFailures = 3
)

// FetchState is the loop state of one series run.
type FetchState struct {
	Cursor              time.Time
	LastSeen            time.Time
	HasLastSeen         bool
	ConsecutiveFailures int
	Calls               int
	Pages               []models.Page
}

// NewFetchState starts at the beginning of the requested range.
func NewFetchState(start time.Time) *FetchState {
	return &FetchState{Cursor: start}
}

// Advance applies one page to the state. windowEnd is the end of the window
// that produced the page. It returns the stop reason once the loop must end.
func (s *FetchState) Advance(page models.Page, windowEnd, requestEnd time.Time, maxFailures int) (models.StopReason, bool) {
	if newest, ok := page.Newest(); ok {
		if s.HasLastSeen && !newest.After(s.LastSeen) {
			return models.StopStalled, true
		}
		s.Pages = append(s.Pages, page)
		s.LastSeen, s.HasLastSeen = newest, true
		s.moveCursor(newest.Add(time.Millisecond))
		s.ConsecutiveFailures = 0
		if !newest.Before(requestEnd) {
			return models.StopReachedEnd, true
		}
		return "", false
	}

	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= maxFailures {
		return models.StopMaxFailures, true
	}
	s.moveCursor(windowEnd.Add(time.Millisecond))
	return "", false
}

func (s *FetchState) moveCursor(next time.Time) {
	if next.After(s.Cursor) {
		s.Cursor = next
	}
}

// SeriesRequest is one engine run.
type SeriesRequest struct {
	Symbol string
	Period string
	Window models.TimeWindow
	Step   time.Duration
	Limit  int
}

// EngineOption configures FetchEngine.
type EngineOption func(*FetchEngine)

// WithMaxConsecutiveFailures overrides the failure bound.
func WithMaxConsecutiveFailures(n int) EngineOption {
	return func(e *FetchEngine) {
		if n > 0 {
			e.maxFailures = n
		}
	}
}

// FetchEngine turns one large range into bounded adapter calls.
type FetchEngine struct {
	pacer       domrepo.Pacer
	metrics     domrepo.Metrics
	logger      *applogger.Logger
	maxFailures int
}

func NewFetchEngine(pacer domrepo.Pacer, m domrepo.Metrics, l *applogger.Logger, opts ...EngineOption) *FetchEngine {
	if pacer == nil {
		pacer = SleepPacer{Delay: DefaultInterRequestDelay}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	e := &FetchEngine{pacer: pacer, metrics: m, logger: l, maxFailures: DefaultMaxConsecutiveFailures}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives adapter across req.Window and returns the merged result. The
// only error is cancellation, which discards the pages collected so far.
func (e *FetchEngine) Run(ctx context.Context, adapter domrepo.Adapter, req SeriesRequest) (*models.SeriesResult, error) {
	series := adapter.Series()
	if !req.Window.Valid() {
		return nil, fmt.Errorf("%s: invalid window %s", series, req.Window)
	}
	step := req.Step
	if step <= 0 {
		step = domrepo.StepForSeries(series, req.Period)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = adapter.PageLimit()
	}
	log := e.logger.With(applogger.String("series", string(series)), applogger.String("symbol", req.Symbol))

	start := time.Now()
	state := NewFetchState(req.Window.Start)
	var reason models.StopReason
	for {
		if !state.Cursor.Before(req.Window.End) {
			reason = models.StopReachedEnd
			break
		}
		windowEnd := state.Cursor.Add(step)
		if windowEnd.After(req.Window.End) {
			windowEnd = req.Window.End
		}
		window := models.TimeWindow{Start: state.Cursor, End: windowEnd}

		page := adapter.Fetch(ctx, domrepo.FetchRequest{
			Symbol: req.Symbol,
			Period: req.Period,
			Window: window,
			Limit:  limit,
		})
		state.Calls++
		if err := ctx.Err(); err != nil {
			return nil, e.canceled(series, state, err)
		}
		e.metrics.RecordFetchCall(string(series), len(page) > 0)

		if len(page) > 0 {
			log.Debug("page fetched",
				applogger.Int("call", state.Calls),
				applogger.Int("records", len(page)),
				applogger.Time("from", page[0].Timestamp),
				applogger.Time("to", page[len(page)-1].Timestamp))
		} else {
			log.Warn("empty page",
				applogger.Int("call", state.Calls),
				applogger.String("window", window.String()),
				applogger.Int("consecutive_failures", state.ConsecutiveFailures+1))
		}

		var done bool
		if reason, done = state.Advance(page, windowEnd, req.Window.End, e.maxFailures); done {
			break
		}
		if err := e.pacer.Pause(ctx); err != nil {
			return nil, e.canceled(series, state, err)
		}
	}

	records := within(Merge(state.Pages...), req.Window)
	res := models.NewSeriesResult(series, req.Symbol, req.Period, req.Window, records, reason, state.Calls)
	e.metrics.RecordStop(string(series), string(reason))
	e.metrics.RecordLatency("series_fetch", time.Since(start).Seconds())

	log.Info("series finished",
		applogger.String("stop_reason", string(reason)),
		applogger.Int("calls", state.Calls),
		applogger.Int("records", res.Count))
	return res, nil
}

// within drops records outside [start, end). The upstream treats endTime as
// inclusive, so the last window can return a sample at exactly end.
func within(records []models.Record, w models.TimeWindow) []models.Record {
	out := records[:0]
	for _, r := range records {
		if !r.Timestamp.Before(w.Start) && r.Timestamp.Before(w.End) {
			out = append(out, r)
		}
	}
	return out
}

func (e *FetchEngine) canceled(series models.Series, state *FetchState, err error) error {
	e.metrics.RecordStop(string(series), string(models.StopCanceled))
	return fmt.Errorf("%s: %s after %d calls: %w", series, models.StopCanceled, state.Calls, err)
}
