package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	"FuturesHist/internal/usecase"
	xlogger "FuturesHist/pkg/logger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type dailyAdapter struct {
	series models.Series
	none   bool
}

func (a dailyAdapter) Series() models.Series { return a.series }
func (a dailyAdapter) PageLimit() int        { return 500 }

func (a dailyAdapter) Fetch(_ context.Context, req domrepo.FetchRequest) models.Page {
	if a.none {
		return nil
	}
	ts := req.Window.Start.Truncate(24 * time.Hour)
	if ts.Before(req.Window.Start) {
		ts = ts.Add(24 * time.Hour)
	}
	if !ts.Before(req.Window.End) {
		return nil
	}
	return models.Page{{Timestamp: ts, Fields: map[string]float64{"sum_open_interest": 1}}}
}

type fakeJobs struct {
	types    []string
	payloads []models.BackfillJobPayload
}

func (f *fakeJobs) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload.(models.BackfillJobPayload))
	return "job-" + payload.(models.BackfillJobPayload).Symbol, nil
}

type fakeStore struct {
	filter domrepo.HistoryFilter
}

func (s *fakeStore) Init(context.Context) error                              { return nil }
func (s *fakeStore) StoreBatch(context.Context, []models.SeriesRecord) error { return nil }
func (s *fakeStore) Health(context.Context) error                            { return nil }
func (s *fakeStore) Close() error                                            { return nil }

func (s *fakeStore) Query(_ context.Context, f domrepo.HistoryFilter) ([]models.Record, error) {
	s.filter = f
	return []models.Record{{Timestamp: t0, Fields: map[string]float64{"basis": 12.5}}}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(adapters []domrepo.Adapter, store domrepo.Storage, jobs *fakeJobs) *echo.Echo {
	engine := usecase.NewFetchEngine(usecase.NoPacer{}, nil, nil)
	agg := usecase.NewAggregator(engine, adapters, nil, nil)
	var h *SeriesEchoHandler
	if jobs != nil {
		h = NewSeriesEchoHandler(xlogger.Nop(), agg, store, jobs)
	} else {
		h = NewSeriesEchoHandler(xlogger.Nop(), agg, store, nil)
	}
	h.now = func() time.Time { return t0.Add(10 * 24 * time.Hour) }

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestPeriods(t *testing.T) {
	e := newTestServer(nil, nil, nil)
	rec, env := do(t, e, http.MethodGet, "/api/periods", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var periods []models.PeriodInfo
	require.NoError(t, json.Unmarshal(env.Data, &periods))
	assert.Len(t, periods, 9)
	assert.Equal(t, models.PeriodInfo{Period: "1h", StepMinutes: 30000}, periods[3])
}

func TestSeries_Live(t *testing.T) {
	adapters := []domrepo.Adapter{
		dailyAdapter{series: models.SeriesOpenInterest},
		dailyAdapter{series: models.SeriesBasis, none: true},
	}
	e := newTestServer(adapters, nil, nil)

	rec, env := do(t, e, http.MethodGet, "/api/series?symbol=BTCUSDT&period=1d&start=2024-01-01&end=2024-01-04", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var bundle map[string]*struct {
		Count      int             `json:"count"`
		StopReason string          `json:"stop_reason"`
		Records    []models.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bundle))
	require.NotNil(t, bundle["open_interest"])
	assert.Equal(t, 3, bundle["open_interest"].Count)
	assert.True(t, bundle["open_interest"].Records[2].Timestamp.Equal(t0.Add(48*time.Hour)))
	assert.Contains(t, bundle, "basis")
	assert.Nil(t, bundle["basis"])
}

func TestSeries_SingleSeries(t *testing.T) {
	adapters := []domrepo.Adapter{
		dailyAdapter{series: models.SeriesOpenInterest},
		dailyAdapter{series: models.SeriesBasis},
	}
	e := newTestServer(adapters, nil, nil)

	rec, env := do(t, e, http.MethodGet, "/api/series?symbol=BTCUSDT&period=1d&series=basis&start=2024-01-01&end=2024-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &bundle))
	assert.Len(t, bundle, 1)
	assert.Contains(t, bundle, "basis")
}

func TestSeries_NoData(t *testing.T) {
	e := newTestServer([]domrepo.Adapter{dailyAdapter{series: models.SeriesKlines, none: true}}, nil, nil)
	rec, _ := do(t, e, http.MethodGet, "/api/series?symbol=BTCUSDT&start=2024-01-01&end=2024-01-03", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeries_Validation(t *testing.T) {
	e := newTestServer([]domrepo.Adapter{dailyAdapter{series: models.SeriesKlines}}, nil, nil)

	cases := map[string]string{
		"unknown period": "/api/series?symbol=BTCUSDT&period=7m",
		"unknown series": "/api/series?symbol=BTCUSDT&series=volume",
		"missing symbol": "/api/series?period=1h",
		"lower symbol":   "/api/series?symbol=btcusdt",
		"bad range":      "/api/series?symbol=BTCUSDT&start=2024-02-01&end=2024-01-01",
		"bad date":       "/api/series?symbol=BTCUSDT&start=yesterday",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := do(t, e, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestBackfill_Enqueues(t *testing.T) {
	jobs := &fakeJobs{}
	e := newTestServer(nil, nil, jobs)

	body := `{"symbols":["BTCUSDT","ETHUSDT"],"period":"4h","series":["klines"],"start":"2024-01-01","end":"2024-01-05"}`
	rec, env := do(t, e, http.MethodPost, "/api/backfill", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted models.BackfillAccepted
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, []string{"job-BTCUSDT", "job-ETHUSDT"}, accepted.JobIDs)

	require.Len(t, jobs.payloads, 2)
	assert.Equal(t, []string{usecase.BackfillJobType, usecase.BackfillJobType}, jobs.types)
	p := jobs.payloads[1]
	assert.Equal(t, "ETHUSDT", p.Symbol)
	assert.Equal(t, "4h", p.Period)
	assert.Equal(t, []models.Series{models.SeriesKlines}, p.Series)
	assert.True(t, p.Start.Equal(t0))
	assert.True(t, p.End.Equal(t0.Add(4*24*time.Hour)))
}

func TestBackfill_DefaultsToLastThirtyDays(t *testing.T) {
	jobs := &fakeJobs{}
	e := newTestServer(nil, nil, jobs)

	rec, _ := do(t, e, http.MethodPost, "/api/backfill", `{"symbols":["BTCUSDT"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, jobs.payloads, 1)
	p := jobs.payloads[0]
	assert.Equal(t, "1h", p.Period)
	assert.Equal(t, 30*24*time.Hour, p.End.Sub(p.Start))
}

func TestBackfill_Rejects(t *testing.T) {
	e := newTestServer(nil, nil, &fakeJobs{})
	rec, _ := do(t, e, http.MethodPost, "/api/backfill", `{"symbols":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/backfill", `{"symbols":["BTCUSDT"],"series":["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e = newTestServer(nil, nil, nil)
	rec, _ = do(t, e, http.MethodPost, "/api/backfill", `{"symbols":["BTCUSDT"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistory(t *testing.T) {
	store := &fakeStore{}
	e := newTestServer(nil, store, nil)

	rec, env := do(t, e, http.MethodGet, "/api/history?symbol=BTCUSDT&series=basis&start=2024-01-01&end=2024-01-02&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list struct {
		Rows  []models.Record `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 12.5, list.Rows[0].Fields["basis"])

	assert.Equal(t, models.SeriesBasis, store.filter.Series)
	assert.Equal(t, "1h", store.filter.Period)
	assert.Equal(t, 5, store.filter.Limit)
	assert.True(t, store.filter.From.Equal(t0))

	rec, _ = do(t, e, http.MethodGet, "/api/history?symbol=BTCUSDT", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_NoStorage(t *testing.T) {
	e := newTestServer(nil, nil, nil)
	rec, _ := do(t, e, http.MethodGet, "/api/history?symbol=BTCUSDT&series=basis", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
