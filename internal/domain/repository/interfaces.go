package repository

import (
	"context"
	"time"

	"MarketForge/internal/domain/models"
)

// BarStore provides access to source daily bars and synthetic intraday bars.
type BarStore interface {
	GetDailyBars(ctx context.Context, symbols []string, from, to time.Time) ([]models.DailyBar, error)
	StoreDailyBars(ctx context.Context, bars []models.DailyBar) error
	ReplaceIntradayBars(ctx context.Context, bars []models.IntradayBar) error
	GetIntradayBars(ctx context.Context, symbol string, from, to time.Time) ([]models.IntradayBar, error)
	Health(ctx context.Context) error
}

// FeatureStore persists computed feature rows with overwrite-per-run semantics.
type FeatureStore interface {
	ReplaceFeatures(ctx context.Context, rows []models.FeatureRow) error
	GetFeatures(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FeatureRow, error)
}

// DatasetStore persists the supervised train/test rows of a run.
type DatasetStore interface {
	ReplaceDataset(ctx context.Context, runID string, train, test []models.SupervisedRow) error
	GetDataset(ctx context.Context, runID string) (train, test []models.SupervisedRow, err error)
}

// DriftStore persists per-feature PSI reports.
type DriftStore interface {
	ReplaceReports(ctx context.Context, runID string, reports []models.DriftReport) error
	GetReports(ctx context.Context, runID string) ([]models.DriftReport, error)
}

// AttributeStore maps symbols to static attributes (sector). Missing symbols
// are tolerated; callers left-join and keep unmatched rows.
type AttributeStore interface {
	GetSectors(ctx context.Context, symbols []string) (map[string]string, error)
}

// Publisher announces completed runs to downstream consumers.
type Publisher interface {
	PublishSummary(ctx context.Context, s models.RunSummary) error
	Close() error
}

// Registry is an explicit (name, version) -> artifact store for model
// handles. Injected dependency, never an ambient global catalog.
type Registry interface {
	Put(ctx context.Context, name, version string, artifact []byte) error
	Get(ctx context.Context, name, version string) ([]byte, error)
	Versions(ctx context.Context, name string) ([]string, error)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordBars(stage, symbol string, n int)
	RecordRowsWritten(table string, n int)
	RecordStageLatency(stage string, seconds float64)
	RecordError(kind string)
	RecordPSI(feature string, score float64)
}
