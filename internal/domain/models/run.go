package models

import "time"

// RunParams selects the input slice for one pipeline run.
type RunParams struct {
	RunID   string
	From    time.Time
	To      time.Time
	Symbols []string // empty means all symbols in the window
}

// RunSummary is the structured result of one pipeline run. Per-symbol and
// per-feature degeneracies are reported here instead of aborting the batch.
type RunSummary struct {
	RunID           string
	StartedAt       time.Time
	Duration        time.Duration
	SymbolsTotal    int
	SymbolsDropped  []string
	BarsRead        int
	BarsRejected    int
	BarsSynthesized int
	FeatureRows     int
	TrainRows       int
	TestRows        int
	NilPSIFeatures  []string
	Errors          map[string]string
}

// TrainResult is what the external training service returns for one fit.
// R2 is nil when target variance in the evaluated set is zero.
type TrainResult struct {
	ModelName string
	Version   string
	RMSE      float64
	MAPE      float64
	R2        *float64
	TrainedAt time.Time
}
