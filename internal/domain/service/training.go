package service

import (
	"context"

	"MarketForge/internal/domain/models"
)

// ModelTrainer is the opaque fit/predict capability of the external training
// service. The regression algorithm itself is not part of this system.
type ModelTrainer interface {
	Fit(ctx context.Context, train, test []models.SupervisedRow, featureCols []string, targetCol string) (models.TrainResult, error)
	Predict(ctx context.Context, modelName, version string, rows []models.FeatureRow) ([]float64, error)
}
