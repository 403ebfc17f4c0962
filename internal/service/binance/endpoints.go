package binance

import (
	"net/url"

	"FuturesHist/internal/domain/models"
)

// DefaultBaseURL is the USDⓈ-M futures REST host.
const DefaultBaseURL = "https://fapi.binance.com"

// field maps one canonical column to a gjson path within a row.
type field struct {
	Name string
	Path string
}

// Endpoint declares how one series is requested and parsed.
type Endpoint struct {
	Series    models.Series
	Path      string
	PageLimit int
	MaxLimit  int
	// TimePath locates the epoch-ms timestamp within a row.
	TimePath string
	// ArrayRows is set when rows are positional arrays instead of objects.
	ArrayRows bool
	Fields    []field
	params    func(symbol, period string) url.Values
}

func symbolPeriod(symbol, period string) url.Values {
	return url.Values{"symbol": {symbol}, "period": {period}}
}

var ratioFields = []field{
	{"long_short_ratio", "longShortRatio"},
	{"long_account", "longAccount"},
	{"short_account", "shortAccount"},
}

var endpoints = []Endpoint{
	{
		Series:    models.SeriesOpenInterest,
		Path:      "/futures/data/openInterestHist",
		PageLimit: 500,
		MaxLimit:  500,
		TimePath:  "timestamp",
		Fields: []field{
			{"sum_open_interest", "sumOpenInterest"},
			{"sum_open_interest_value", "sumOpenInterestValue"},
		},
		params: symbolPeriod,
	},
	{
		Series:    models.SeriesTopAccountRatio,
		Path:      "/futures/data/topLongShortAccountRatio",
		PageLimit: 500,
		MaxLimit:  500,
		TimePath:  "timestamp",
		Fields:    ratioFields,
		params:    symbolPeriod,
	},
	{
		Series:    models.SeriesTopPositionRatio,
		Path:      "/futures/data/topLongShortPositionRatio",
		PageLimit: 500,
		MaxLimit:  500,
		TimePath:  "timestamp",
		Fields:    ratioFields,
		params:    symbolPeriod,
	},
	{
		Series:    models.SeriesGlobalRatio,
		Path:      "/futures/data/globalLongShortAccountRatio",
		PageLimit: 500,
		MaxLimit:  500,
		TimePath:  "timestamp",
		Fields:    ratioFields,
		params:    symbolPeriod,
	},
	{
		Series:    models.SeriesBasis,
		Path:      "/futures/data/basis",
		PageLimit: 500,
		MaxLimit:  500,
		TimePath:  "timestamp",
		Fields: []field{
			{"basis", "basis"},
			{"basis_rate", "basisRate"},
		},
		params: func(symbol, period string) url.Values {
			return url.Values{"pair": {symbol}, "contractType": {"PERPETUAL"}, "period": {period}}
		},
	},
	{
		Series:    models.SeriesFundingRate,
		Path:      "/fapi/v1/fundingRate",
		PageLimit: 1000,
		MaxLimit:  1000,
		TimePath:  "fundingTime",
		Fields: []field{
			{"funding_rate", "fundingRate"},
		},
		params: func(symbol, _ string) url.Values {
			return url.Values{"symbol": {symbol}}
		},
	},
	{
		Series:    models.SeriesKlines,
		Path:      "/fapi/v1/klines",
		PageLimit: 500,
		MaxLimit:  1500,
		TimePath:  "0",
		ArrayRows: true,
		Fields: []field{
			{"open", "1"},
			{"high", "2"},
			{"low", "3"},
			{"close", "4"},
			{"volume", "5"},
		},
		params: func(symbol, period string) url.Values {
			return url.Values{"symbol": {symbol}, "interval": {period}}
		},
	},
}

// Endpoints returns the declarations for every series, in aggregation order.
func Endpoints() []Endpoint {
	out := make([]Endpoint, len(endpoints))
	copy(out, endpoints)
	return out
}

// EndpointFor returns the declaration for series s.
func EndpointFor(s models.Series) (Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.Series == s {
			return ep, true
		}
	}
	return Endpoint{}, false
}
