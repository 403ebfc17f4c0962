package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	"FuturesHist/internal/usecase"
	xhttp "FuturesHist/pkg/http"
	xlogger "FuturesHist/pkg/logger"
	"FuturesHist/pkg/queue"
	"FuturesHist/pkg/util"
)

var registerOnce sync.Once

// RegisterValidators adds the "period" and "series" request tags.
func RegisterValidators() {
	registerOnce.Do(func() {
		_ = xhttp.RegisterValidation("period", func(fl validator.FieldLevel) bool {
			return domrepo.IsSupportedPeriod(fl.Field().String())
		})
		_ = xhttp.RegisterValidation("series", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseSeries(fl.Field().String())
			return ok
		})
	})
}

// SeriesEchoHandler serves live fetches, stored history and backfill jobs.
type SeriesEchoHandler struct {
	logger *xlogger.Logger
	agg    *usecase.Aggregator
	store  domrepo.Storage
	jobs   queue.Publisher
	now    func() time.Time
}

// NewSeriesEchoHandler wires the handler. store and jobs may be nil, in
// which case their routes answer 503.
func NewSeriesEchoHandler(logger *xlogger.Logger, agg *usecase.Aggregator, store domrepo.Storage, jobs queue.Publisher) *SeriesEchoHandler {
	RegisterValidators()
	return &SeriesEchoHandler{logger: logger, agg: agg, store: store, jobs: jobs, now: time.Now}
}

func (h *SeriesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/periods", h.Periods)
	g.GET("/series", h.Series)
	g.GET("/history", h.History)
	g.POST("/backfill", h.Backfill)
}

func (h *SeriesEchoHandler) Periods(c echo.Context) error {
	return xhttp.SuccessResponse(c, domrepo.SupportedPeriods())
}

// Series fetches one or every series live from the upstream API.
func (h *SeriesEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window, err := h.window(req.Start, req.End, req.Days)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	var series []models.Series
	if req.Series != "" {
		s, _ := models.ParseSeries(req.Series)
		series = []models.Series{s}
	}

	bundle, err := h.agg.Run(c.Request().Context(), usecase.AggregateRequest{
		Symbol: req.Symbol,
		Period: req.Period,
		Window: window,
		Series: series,
	})
	if err != nil {
		h.logger.Error("series fetch error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		if errors.Is(err, context.Canceled) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CANCELED", "", "request canceled", 499).WithError(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.UpstreamErrorf("fetch %s", req.Symbol).WithError(err))
	}
	if bundle.Empty() {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data for %s in %s", req.Symbol, window))
	}
	return xhttp.SuccessResponse(c, bundle)
}

// History reads records previously written by a backfill.
func (h *SeriesEchoHandler) History(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, unavailable("storage"))
	}
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window, err := h.window(req.Start, req.End, req.Days)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	series, _ := models.ParseSeries(req.Series)

	rows, err := h.store.Query(c.Request().Context(), domrepo.HistoryFilter{
		Symbol: req.Symbol,
		Period: req.Period,
		Series: series,
		From:   window.Start,
		To:     window.End,
		Limit:  req.Limit,
	})
	if err != nil {
		h.logger.Error("history query error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("query history").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Backfill queues one job per symbol.
func (h *SeriesEchoHandler) Backfill(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, unavailable("job queue"))
	}
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window, err := h.window(req.Start, req.End, req.Days)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	series := make([]models.Series, 0, len(req.Series))
	for _, name := range req.Series {
		s, _ := models.ParseSeries(name)
		series = append(series, s)
	}

	accepted := &models.BackfillAccepted{Window: window}
	for _, symbol := range req.Symbols {
		id, err := h.jobs.Enqueue(c.Request().Context(), usecase.BackfillJobType, models.BackfillJobPayload{
			Symbol: symbol,
			Period: req.Period,
			Start:  window.Start,
			End:    window.End,
			Series: series,
		})
		if err != nil {
			h.logger.Error("enqueue backfill error", xlogger.String("symbol", symbol), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("enqueue backfill").WithError(err))
		}
		accepted.JobIDs = append(accepted.JobIDs, id)
	}
	h.logger.Info("backfill queued",
		xlogger.Strings("symbols", req.Symbols),
		xlogger.String("window", window.String()))
	return xhttp.AcceptedResponse(c, accepted)
}

func (h *SeriesEchoHandler) window(start, end string, days int) (models.TimeWindow, error) {
	from, to, err := util.ResolveRange(start, end, days, h.now())
	if err != nil {
		return models.TimeWindow{}, xhttp.BadRequestErrorf("%v", err).WithError(err)
	}
	return models.TimeWindow{Start: from, End: to}, nil
}

func unavailable(what string) *xhttp.AppError {
	return xhttp.NewAppError("ERR_UNAVAILABLE", "", what+" is not configured", http.StatusServiceUnavailable)
}
