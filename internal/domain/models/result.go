package models

import "time"

// StopReason says why a pagination loop ended.
type StopReason string

const (
	StopReachedEnd  StopReason = "reached_end"
	StopStalled     StopReason = "stalled"
	StopMaxFailures StopReason = "max_failures"
	StopCanceled    StopReason = "canceled"
)

// SeriesResult holds deduplicated, time-ascending records for one series
// across a requested window.
type SeriesResult struct {
	Series        Series     `json:"series"`
	Symbol        string     `json:"symbol"`
	Period        string     `json:"period"`
	Window        TimeWindow `json:"window"`
	Records       []Record   `json:"records"`
	Count         int        `json:"count"`
	CoverageStart *time.Time `json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time `json:"coverage_end,omitempty"`
	StopReason    StopReason `json:"stop_reason"`
	Calls         int        `json:"calls"`
}

// NewSeriesResult fills Count and coverage from records, which must already
// be merged.
func NewSeriesResult(series Series, symbol, period string, window TimeWindow, records []Record, reason StopReason, calls int) *SeriesResult {
	res := &SeriesResult{
		Series:     series,
		Symbol:     symbol,
		Period:     period,
		Window:     window,
		Records:    records,
		Count:      len(records),
		StopReason: reason,
		Calls:      calls,
	}
	if len(records) > 0 {
		first := records[0].Timestamp
		last := records[len(records)-1].Timestamp
		res.CoverageStart = &first
		res.CoverageEnd = &last
	}
	return res
}

func (r *SeriesResult) Empty() bool { return r == nil || r.Count == 0 }

// Tagged converts the records for storage or publishing.
func (r *SeriesResult) Tagged() []SeriesRecord {
	out := make([]SeriesRecord, len(r.Records))
	for i, rec := range r.Records {
		out[i] = SeriesRecord{Symbol: r.Symbol, Period: r.Period, Series: r.Series, Record: rec}
	}
	return out
}

// Bundle maps each requested series to its result. A nil value marks a
// series that produced no data.
type Bundle map[Series]*SeriesResult

// Populated lists series with at least one record, in aggregation order.
func (b Bundle) Populated() []Series {
	var out []Series
	for _, s := range allSeries {
		if res, ok := b[s]; ok && !res.Empty() {
			out = append(out, s)
		}
	}
	return out
}

// Empty reports whether no series produced data.
func (b Bundle) Empty() bool { return len(b.Populated()) == 0 }
