package repository

import (
	"context"
	"time"

	"FuturesHist/internal/domain/models"
)

// FetchRequest is one bounded adapter call.
type FetchRequest struct {
	Symbol string
	Period string
	Window models.TimeWindow
	Limit  int
}

// Adapter fetches one page of one series. A nil or empty page means the
// call produced nothing usable; the caller treats both the same.
type Adapter interface {
	Series() models.Series
	PageLimit() int
	Fetch(ctx context.Context, req FetchRequest) models.Page
}

// Pacer blocks between consecutive adapter calls.
type Pacer interface {
	Pause(ctx context.Context) error
}

// CheckpointKey identifies a completed series run.
type CheckpointKey struct {
	Symbol string
	Period string
	Series models.Series
	Window models.TimeWindow
}

// Checkpointer persists completed series so an interrupted run can resume
// at series granularity. Load returns (nil, nil) on a miss.
type Checkpointer interface {
	Load(ctx context.Context, key CheckpointKey) (*models.SeriesResult, error)
	Save(ctx context.Context, key CheckpointKey, res *models.SeriesResult) error
}

// HistoryFilter selects stored records.
type HistoryFilter struct {
	Symbol string
	Period string
	Series models.Series
	From   time.Time
	To     time.Time
	Limit  int
}

type Publisher interface {
	PublishBatch(ctx context.Context, records []models.SeriesRecord) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, records []models.SeriesRecord) error
	Query(ctx context.Context, f HistoryFilter) ([]models.Record, error)
	Health(ctx context.Context) error
	Close() error
}

// Locker guards a key against concurrent runs.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordFetchCall(series string, nonEmpty bool)
	RecordStop(series, reason string)
	RecordRecords(backend, series string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
