package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	applogger "FuturesHist/pkg/logger"
	"FuturesHist/pkg/metrics"
)

// ErrNoData is returned when every series of a run came back empty.
var ErrNoData = errors.New("no data for any series")

// Sink backends.
const (
	SinkNone       = "none"
	SinkClickHouse = "clickhouse"
	SinkKafka      = "kafka"
)

// BackfillService fetches every series for a symbol and routes the result
// to the configured sink.
type BackfillService struct {
	agg     *Aggregator
	pub     domrepo.Publisher
	store   domrepo.Storage
	metrics domrepo.Metrics
	logger  *applogger.Logger
	sink    string
}

func NewBackfillService(
	agg *Aggregator,
	pub domrepo.Publisher,
	store domrepo.Storage,
	m domrepo.Metrics,
	l *applogger.Logger,
	sink string,
) *BackfillService {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	if sink == "" {
		sink = SinkNone
	}
	return &BackfillService{agg: agg, pub: pub, store: store, metrics: m, logger: l, sink: sink}
}

// Run backfills one symbol. It returns ErrNoData without touching the sink
// when nothing was fetched.
func (s *BackfillService) Run(ctx context.Context, req AggregateRequest) (models.Bundle, error) {
	start := time.Now()
	bundle, err := s.agg.Run(ctx, req)
	if err != nil {
		s.metrics.RecordError("aggregate")
		return nil, fmt.Errorf("aggregate %s: %w", req.Symbol, err)
	}

	s.logSummary(req, bundle)
	if bundle.Empty() {
		s.metrics.RecordError("no_data")
		return bundle, fmt.Errorf("%s %s: %w", req.Symbol, req.Window, ErrNoData)
	}

	if err := s.deliver(ctx, bundle); err != nil {
		s.metrics.RecordError("sink")
		return bundle, fmt.Errorf("deliver %s: %w", req.Symbol, err)
	}
	s.metrics.RecordLatency("backfill", time.Since(start).Seconds())
	return bundle, nil
}

// RunSymbols backfills symbols one after another. A symbol without data is
// logged and skipped; any other error stops the run.
func (s *BackfillService) RunSymbols(ctx context.Context, symbols []string, req AggregateRequest) (map[string]models.Bundle, error) {
	out := make(map[string]models.Bundle, len(symbols))
	for _, symbol := range symbols {
		r := req
		r.Symbol = symbol
		bundle, err := s.Run(ctx, r)
		if errors.Is(err, ErrNoData) {
			s.logger.Warn("symbol skipped", applogger.String("symbol", symbol), applogger.Error(err))
			continue
		}
		if err != nil {
			return out, err
		}
		out[symbol] = bundle
	}
	return out, nil
}

func (s *BackfillService) deliver(ctx context.Context, bundle models.Bundle) error {
	for _, series := range bundle.Populated() {
		res := bundle[series]
		records := res.Tagged()

		var err error
		switch s.sink {
		case SinkNone:
			continue
		case SinkKafka:
			err = s.pub.PublishBatch(ctx, records)
		case SinkClickHouse:
			err = s.store.StoreBatch(ctx, records)
		default:
			err = fmt.Errorf("unknown sink: %s", s.sink)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", series, err)
		}
		s.metrics.RecordRecords(s.sink, string(series), len(records))
	}
	return nil
}

func (s *BackfillService) logSummary(req AggregateRequest, bundle models.Bundle) {
	for _, series := range models.AllSeries() {
		res, requested := bundle[series]
		if !requested {
			continue
		}
		if res == nil {
			s.logger.Warn("series empty",
				applogger.String("symbol", req.Symbol),
				applogger.String("series", string(series)))
			continue
		}
		s.logger.Info("series coverage",
			applogger.String("symbol", req.Symbol),
			applogger.String("series", string(series)),
			applogger.Int("records", res.Count),
			applogger.Time("from", *res.CoverageStart),
			applogger.Time("to", *res.CoverageEnd),
			applogger.String("stop_reason", string(res.StopReason)))
	}
}

// Close releases the sink clients.
func (s *BackfillService) Close() {
	if s.pub != nil {
		_ = s.pub.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
