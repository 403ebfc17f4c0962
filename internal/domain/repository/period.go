package repository

import (
	"time"

	"FuturesHist/internal/domain/models"
)

const (
	// DefaultStep applies to periods missing from the step table.
	DefaultStep = 500 * time.Hour
	// FundingRateStep is used for funding rate regardless of period.
	FundingRateStep = 300 * 24 * time.Hour
	// DefaultPeriod is used when none is given.
	DefaultPeriod = "1h"
)

type periodStep struct {
	period string
	step   time.Duration
}

// Each step is the period times the endpoint page size of 500.
var stepTable = []periodStep{
	{"5m", 2500 * time.Minute},
	{"15m", 7500 * time.Minute},
	{"30m", 15000 * time.Minute},
	{"1h", 500 * time.Hour},
	{"2h", 1000 * time.Hour},
	{"4h", 2000 * time.Hour},
	{"6h", 3000 * time.Hour},
	{"12h", 6000 * time.Hour},
	{"1d", 500 * 24 * time.Hour},
}

// StepFor returns the pagination window length for period.
func StepFor(period string) time.Duration {
	for _, ps := range stepTable {
		if ps.period == period {
			return ps.step
		}
	}
	return DefaultStep
}

// StepForSeries applies the funding rate override.
func StepForSeries(series models.Series, period string) time.Duration {
	if series == models.SeriesFundingRate {
		return FundingRateStep
	}
	return StepFor(period)
}

func IsSupportedPeriod(period string) bool {
	for _, ps := range stepTable {
		if ps.period == period {
			return true
		}
	}
	return false
}

// SupportedPeriods lists the step table in ascending period order.
func SupportedPeriods() []models.PeriodInfo {
	out := make([]models.PeriodInfo, len(stepTable))
	for i, ps := range stepTable {
		out[i] = models.PeriodInfo{Period: ps.period, StepMinutes: int64(ps.step / time.Minute)}
	}
	return out
}
