package models

import "time"

// SeriesQuery is the query of GET /api/series.
type SeriesQuery struct {
	Symbol string `query:"symbol" validate:"required,uppercase,alphanum"`
	Period string `query:"period" default:"1h" validate:"period"`
	Series string `query:"series" validate:"omitempty,series"`
	Start  string `query:"start"`
	End    string `query:"end"`
	Days   int    `query:"days" default:"30" validate:"gte=1,lte=3650"`
}

// BackfillRequest is the body of POST /api/backfill.
type BackfillRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,required,uppercase,alphanum"`
	Period  string   `json:"period" default:"1h" validate:"period"`
	Series  []string `json:"series" validate:"dive,series"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Days    int      `json:"days" default:"30" validate:"gte=1,lte=3650"`
}

// HistoryQuery is the query of GET /api/history.
type HistoryQuery struct {
	Symbol string `query:"symbol" validate:"required,uppercase,alphanum"`
	Period string `query:"period" default:"1h" validate:"period"`
	Series string `query:"series" validate:"required,series"`
	Start  string `query:"start"`
	End    string `query:"end"`
	Days   int    `query:"days" default:"30" validate:"gte=1,lte=3650"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=10000"`
}

// BackfillJobPayload is queued for one symbol.
type BackfillJobPayload struct {
	Symbol string    `json:"symbol"`
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Series []Series  `json:"series,omitempty"`
}

// BackfillAccepted is returned when jobs were queued.
type BackfillAccepted struct {
	JobIDs []string   `json:"job_ids"`
	Window TimeWindow `json:"window"`
}

// PeriodInfo describes one supported period and its pagination step.
type PeriodInfo struct {
	Period      string `json:"period"`
	StepMinutes int64  `json:"step_minutes"`
}
