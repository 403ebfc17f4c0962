package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"FuturesHist/internal/di"
	"FuturesHist/internal/domain/models"
	"FuturesHist/internal/domain/repository"
	"FuturesHist/internal/usecase"
	"FuturesHist/pkg/config"
	"FuturesHist/pkg/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file path (defaults apply when empty)")
		symbols    = flag.String("symbol", "", "comma separated symbols, e.g. BTCUSDT,ETHUSDT")
		period     = flag.String("period", "", "sampling period (5m..1d)")
		start      = flag.String("start", "", "range start: YYYY-MM-DD, RFC3339 or epoch")
		end        = flag.String("end", "", "range end, defaults to now")
		days       = flag.Int("days", 0, "range length when start is empty")
		series     = flag.String("series", "", "comma separated series, all when empty")
		sink       = flag.String("sink", "", "none, clickhouse or kafka")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	applyFlags(cfg, *symbols, *period, *start, *end, *days, *series, *sink)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if len(cfg.Backfill.Symbols) == 0 {
		log.Fatal("no symbols: pass -symbol or set backfill.symbols")
	}
	if !repository.IsSupportedPeriod(cfg.Backfill.Period) {
		log.Printf("period %q not in step table, using default step", cfg.Backfill.Period)
	}

	from, to, err := util.ResolveRange(cfg.Backfill.Start, cfg.Backfill.End, cfg.Backfill.Days, time.Now())
	if err != nil {
		log.Fatalf("invalid range: %v", err)
	}
	selected, err := parseSeries(cfg.Backfill.Series)
	if err != nil {
		log.Fatal(err)
	}

	svc, cleanup, err := di.InitializeBackfill(cfg)
	if err != nil {
		log.Fatalf("backfill initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	out, err := svc.RunSymbols(ctx, cfg.Backfill.Symbols, usecase.AggregateRequest{
		Period: cfg.Backfill.Period,
		Window: models.TimeWindow{Start: from, End: to},
		Series: selected,
	})
	stop()
	cleanup()

	if err != nil {
		log.Printf("backfill failed: %v", err)
		os.Exit(1)
	}
	if len(out) == 0 {
		log.Printf("backfill finished: %v", usecase.ErrNoData)
		os.Exit(2)
	}
	for symbol, bundle := range out {
		log.Printf("%s: %d/%d series populated", symbol, len(bundle.Populated()), len(bundle))
	}
}

func applyFlags(cfg *config.Config, symbols, period, start, end string, days int, series, sink string) {
	if symbols != "" {
		cfg.Backfill.Symbols = splitList(strings.ToUpper(symbols))
	}
	if period != "" {
		cfg.Backfill.Period = period
	}
	if start != "" {
		cfg.Backfill.Start = start
	}
	if end != "" {
		cfg.Backfill.End = end
	}
	if days > 0 {
		cfg.Backfill.Days = days
	}
	if series != "" {
		cfg.Backfill.Series = splitList(series)
	}
	if sink != "" {
		cfg.Sink.Type = sink
	}
}

func parseSeries(names []string) ([]models.Series, error) {
	out := make([]models.Series, 0, len(names))
	for _, name := range names {
		s, ok := models.ParseSeries(name)
		if !ok {
			return nil, errors.New("unknown series " + name)
		}
		out = append(out, s)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
