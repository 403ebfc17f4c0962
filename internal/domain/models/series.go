package models

// Series names one upstream time series.
type Series string

const (
	SeriesOpenInterest     Series = "open_interest"
	SeriesTopAccountRatio  Series = "top_account_ratio"
	SeriesTopPositionRatio Series = "top_position_ratio"
	SeriesGlobalRatio      Series = "global_ratio"
	SeriesBasis            Series = "basis"
	SeriesFundingRate      Series = "funding_rate"
	SeriesKlines           Series = "klines"
)

var allSeries = []Series{
	SeriesOpenInterest,
	SeriesTopAccountRatio,
	SeriesTopPositionRatio,
	SeriesGlobalRatio,
	SeriesBasis,
	SeriesFundingRate,
	SeriesKlines,
}

// AllSeries returns every series in aggregation order.
func AllSeries() []Series {
	out := make([]Series, len(allSeries))
	copy(out, allSeries)
	return out
}

// ParseSeries returns the Series named s.
func ParseSeries(s string) (Series, bool) {
	for _, known := range allSeries {
		if string(known) == s {
			return known, true
		}
	}
	return "", false
}

func (s Series) String() string { return string(s) }
