package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"FuturesHist/internal/domain/models"
	domrepo "FuturesHist/internal/domain/repository"
	xhttp "FuturesHist/pkg/http"
	applogger "FuturesHist/pkg/logger"
)

// Getter is the transport the adapters depend on.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) xhttp.Outcome
}

// Adapter fetches one series from the futures market-data API.
type Adapter struct {
	ep      Endpoint
	baseURL string
	client  Getter
	logger  *applogger.Logger
}

// NewAdapter builds the adapter for one endpoint.
func NewAdapter(ep Endpoint, baseURL string, client Getter, l *applogger.Logger) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Adapter{
		ep:      ep,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  l.With(applogger.String("series", string(ep.Series))),
	}
}

// NewAdapters builds one adapter per series in aggregation order.
func NewAdapters(baseURL string, client Getter, l *applogger.Logger) []domrepo.Adapter {
	out := make([]domrepo.Adapter, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, NewAdapter(ep, baseURL, client, l))
	}
	return out
}

func (a *Adapter) Series() models.Series { return a.ep.Series }

func (a *Adapter) PageLimit() int { return a.ep.PageLimit }

// Fetch returns the parsed page or nil when the call failed, returned
// nothing, or returned something that is not a valid page.
func (a *Adapter) Fetch(ctx context.Context, req domrepo.FetchRequest) models.Page {
	params := a.Params(req)
	out := a.client.Get(ctx, a.baseURL+a.ep.Path, params)
	if !out.OK() {
		a.logger.Debug("fetch failed",
			applogger.String("window", req.Window.String()),
			applogger.Int("status", out.Status),
			applogger.Error(out.Err))
		return nil
	}

	page, err := ParsePage(a.ep, out.Payload)
	if err != nil {
		a.logger.Warn("discarding malformed page",
			applogger.String("window", req.Window.String()),
			applogger.Error(err))
		return nil
	}
	return page
}

// Params builds the query string for one call. The window end is sent as is;
// the upstream treats it as inclusive and merge absorbs the overlap.
func (a *Adapter) Params(req domrepo.FetchRequest) url.Values {
	limit := req.Limit
	if limit <= 0 {
		limit = a.ep.PageLimit
	}
	if limit > a.ep.MaxLimit {
		limit = a.ep.MaxLimit
	}

	params := a.ep.params(req.Symbol, req.Period)
	params.Set("startTime", strconv.FormatInt(req.Window.Start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(req.Window.End.UnixMilli(), 10))
	params.Set("limit", strconv.Itoa(limit))
	return params
}

// ParsePage checks the payload shape and coerces every row. Any bad row
// rejects the whole page.
func ParsePage(ep Endpoint, payload []byte) (models.Page, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	root := gjson.ParseBytes(payload)
	if !root.IsArray() {
		return nil, fmt.Errorf("payload is not an array")
	}

	rows := root.Array()
	page := make(models.Page, 0, len(rows))
	for i, row := range rows {
		if ep.ArrayRows && !row.IsArray() {
			return nil, fmt.Errorf("row %d: expected array", i)
		}
		if !ep.ArrayRows && !row.IsObject() {
			return nil, fmt.Errorf("row %d: expected object", i)
		}

		ts, err := toDecimal(row.Get(ep.TimePath))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, models.TimestampColumn, err)
		}
		rec := models.Record{
			Timestamp: time.UnixMilli(ts.IntPart()).UTC(),
			Fields:    make(map[string]float64, len(ep.Fields)),
		}
		for _, f := range ep.Fields {
			d, err := toDecimal(row.Get(f.Path))
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", i, f.Name, err)
			}
			rec.Fields[f.Name] = d.InexactFloat64()
		}
		page = append(page, rec)
	}
	return page, nil
}

// toDecimal accepts JSON numbers and numeric strings.
func toDecimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	case gjson.String:
		return decimal.NewFromString(v.Str)
	case gjson.Null:
		if !v.Exists() {
			return decimal.Zero, fmt.Errorf("missing")
		}
		return decimal.Zero, fmt.Errorf("null")
	default:
		return decimal.Zero, fmt.Errorf("unexpected %s", v.Type)
	}
}
