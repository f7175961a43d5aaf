package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
)

// QueriesUseCase provides read-side access for the HTTP API.
type QueriesUseCase struct {
	feats domrepo.FeatureStore
	drift domrepo.DriftStore
}

func NewQueriesUseCase(feats domrepo.FeatureStore, drift domrepo.DriftStore) *QueriesUseCase {
	return &QueriesUseCase{feats: feats, drift: drift}
}

type GetFeaturesParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

type GetFeaturesResult struct {
	Symbol string
	From   time.Time
	To     time.Time
	Count  int
	Rows   []models.FeatureRow
}

func (uc *QueriesUseCase) GetFeatures(ctx context.Context, p GetFeaturesParams) (*GetFeaturesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}

	rows, err := uc.feats.GetFeatures(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get features: %w", err)
	}

	return &GetFeaturesResult{
		Symbol: p.Symbol,
		From:   p.From,
		To:     p.To,
		Count:  len(rows),
		Rows:   rows,
	}, nil
}

type GetDriftResult struct {
	RunID   string
	Count   int
	Reports []models.DriftReport
}

// GetDrift returns the drift reports for runID, or for the most recent run
// when runID is empty.
func (uc *QueriesUseCase) GetDrift(ctx context.Context, runID string) (*GetDriftResult, error) {
	reports, err := uc.drift.GetReports(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get drift reports: %w", err)
	}
	res := &GetDriftResult{RunID: runID, Count: len(reports), Reports: reports}
	if runID == "" && len(reports) > 0 {
		res.RunID = reports[0].RunID
	}
	return res, nil
}
