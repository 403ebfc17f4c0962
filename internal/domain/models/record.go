package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampColumn is the uniform name of the time column in every series.
const TimestampColumn = "timestamp"

// Record is one sample of a series. Fields holds the series' numeric
// columns keyed by canonical name.
type Record struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// MarshalJSON flattens the record: {"timestamp": ..., "<field>": value, ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[TimestampColumn] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	tsRaw, ok := raw[TimestampColumn]
	if !ok {
		return fmt.Errorf("record: missing %q", TimestampColumn)
	}
	var ts string
	if err := json.Unmarshal(tsRaw, &ts); err != nil {
		return fmt.Errorf("record: timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fmt.Errorf("record: timestamp: %w", err)
	}

	fields := make(map[string]float64, len(raw)-1)
	for k, v := range raw {
		if k == TimestampColumn {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("record: field %s: %w", k, err)
		}
		fields[k] = f
	}
	r.Timestamp = t.UTC()
	r.Fields = fields
	return nil
}

// Page is the ordered output of one adapter call. It may be empty.
type Page []Record

// Newest returns the maximum timestamp in the page.
func (p Page) Newest() (time.Time, bool) {
	if len(p) == 0 {
		return time.Time{}, false
	}
	newest := p[0].Timestamp
	for _, r := range p[1:] {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	return newest, true
}

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Valid() bool { return w.Start.Before(w.End) }

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// SeriesRecord is a record tagged with where it came from. It is the unit
// written to storage and published on Kafka.
type SeriesRecord struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
	Series Series `json:"series"`
	Record Record `json:"record"`
}
