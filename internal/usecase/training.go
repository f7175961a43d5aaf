package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
	domsvc "MarketForge/internal/domain/service"
	applogger "MarketForge/pkg/logger"
)

// TrainingUseCase hands the current supervised dataset to the external
// training service and records the resulting model handle in the registry.
type TrainingUseCase struct {
	trainer  domsvc.ModelTrainer
	registry domrepo.Registry
	l        *applogger.Logger
}

func NewTrainingUseCase(trainer domsvc.ModelTrainer, registry domrepo.Registry) *TrainingUseCase {
	return &TrainingUseCase{trainer: trainer, registry: registry}
}

func (uc *TrainingUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// Train fits a model on the given partitions and stores its handle under
// (result.ModelName, result.Version). Rows are assumed pre-split; the use
// case does not re-partition.
func (uc *TrainingUseCase) Train(ctx context.Context, train, test []models.SupervisedRow) (*models.TrainResult, error) {
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("both partitions required: train=%d test=%d", len(train), len(test))
	}

	started := time.Now()
	result, err := uc.trainer.Fit(ctx, train, test, models.FeatureColumns(), "target")
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	if result.TrainedAt.IsZero() {
		result.TrainedAt = time.Now().UTC()
	}

	handle, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode model handle: %w", err)
	}
	if err := uc.registry.Put(ctx, result.ModelName, result.Version, handle); err != nil {
		return nil, fmt.Errorf("register model %s@%s: %w", result.ModelName, result.Version, err)
	}

	if uc.l != nil {
		uc.l.Info("model trained",
			applogger.String("model", result.ModelName),
			applogger.String("version", result.Version),
			applogger.Any("rmse", result.RMSE),
			applogger.Duration("duration_ms", time.Since(started)),
		)
	}
	return &result, nil
}

// Versions lists the registered versions of a model.
func (uc *TrainingUseCase) Versions(ctx context.Context, modelName string) ([]string, error) {
	return uc.registry.Versions(ctx, modelName)
}

// LoadHandle fetches a previously registered model handle.
func (uc *TrainingUseCase) LoadHandle(ctx context.Context, modelName, version string) (*models.TrainResult, error) {
	b, err := uc.registry.Get(ctx, modelName, version)
	if err != nil {
		return nil, fmt.Errorf("load model %s@%s: %w", modelName, version, err)
	}
	var result models.TrainResult
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, fmt.Errorf("decode model handle: %w", err)
	}
	return &result, nil
}
