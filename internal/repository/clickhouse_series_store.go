package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	applogger "FuturesHist/pkg/logger"
)

const seriesTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    symbol      LowCardinality(String),
    period      LowCardinality(String),
    series      LowCardinality(String),
    ts          DateTime64(3, 'UTC'),
    fields      Map(String, Float64),
    ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
)
ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY (series, toYYYYMM(ts))
ORDER BY (symbol, period, series, ts)`

// CHSeriesStore implements Storage on a ReplacingMergeTree table. Rewriting
// a range replaces the earlier rows once parts merge; reads use FINAL.
type CHSeriesStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSeriesStore(db *sql.DB, table string, l *applogger.Logger) *CHSeriesStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesStore{db: db, table: table, l: l}
}

// SchemaStatements returns the DDL for the series table.
func (s *CHSeriesStore) SchemaStatements() []string {
	return []string{fmt.Sprintf(seriesTableDDL, s.table)}
}

func (s *CHSeriesStore) Init(ctx context.Context) error {
	for _, stmt := range s.SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *CHSeriesStore) StoreBatch(ctx context.Context, records []models.SeriesRecord) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (symbol, period, series, ts, fields)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for _, r := range records {
		if !validRecord(r) {
			continue
		}
		if _, err := stmt.ExecContext(ctx, insertArgs(r)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
		rows++
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse batch insert failed",
			applogger.String("table", s.table),
			applogger.Int("rows", rows),
			applogger.Error(err))
		return fmt.Errorf("send batch: %w", err)
	}

	s.l.Debug("clickhouse batch inserted",
		applogger.String("table", s.table),
		applogger.Int("rows", rows),
		applogger.Duration("took_ms", time.Since(start)))
	return nil
}

func (s *CHSeriesStore) Query(ctx context.Context, f domrepo.HistoryFilter) ([]models.Record, error) {
	q, args := historyQuery(s.table, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0, 256)
	for rows.Next() {
		var (
			ts     time.Time
			fields map[string]float64
		)
		if err := rows.Scan(&ts, &fields); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, models.Record{Timestamp: ts.UTC(), Fields: fields})
	}
	return out, rows.Err()
}

func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection belongs to pkg/clickhouse.
func (s *CHSeriesStore) Close() error { return nil }

func validRecord(r models.SeriesRecord) bool {
	return r.Symbol != "" && r.Series != "" && !r.Record.Timestamp.IsZero()
}

func insertArgs(r models.SeriesRecord) []interface{} {
	fields := r.Record.Fields
	if fields == nil {
		fields = map[string]float64{}
	}
	return []interface{}{r.Symbol, r.Period, string(r.Series), r.Record.Timestamp.UTC(), fields}
}

func historyQuery(table string, f domrepo.HistoryFilter) (string, []interface{}) {
	q := fmt.Sprintf(`SELECT ts, fields FROM %s FINAL
        WHERE symbol = ? AND period = ? AND series = ? AND ts >= ? AND ts < ?
        ORDER BY ts ASC`, table)
	args := []interface{}{f.Symbol, f.Period, string(f.Series), f.From.UTC(), f.To.UTC()}
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return q, args
}

var _ domrepo.Storage = (*CHSeriesStore)(nil)
