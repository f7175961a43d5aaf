package training

import (
	"context"
	"fmt"
	"time"

	"MarketForge/internal/domain/models"
	domsvc "MarketForge/internal/domain/service"
	"MarketForge/pkg/config"
	xhttp "MarketForge/pkg/http"
)

// HTTPTrainer talks to the external training service over JSON HTTP.
// The regression algorithm behind /model/fit is opaque to this system.
type HTTPTrainer struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

func NewHTTPTrainer(cfg *config.Config) *HTTPTrainer {
	timeout := cfg.Training.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.Training.Retries
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPTrainer{
		baseURL:  cfg.Training.URL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: attempts,
	}
}

type fitRow struct {
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"ts"`
	Features  map[string]float64 `json:"features"`
	Target    float64            `json:"target"`
	Split     string             `json:"split"`
}

type fitReq struct {
	Rows        []fitRow `json:"rows"`
	FeatureCols []string `json:"feature_cols"`
	TargetCol   string   `json:"target_col"`
}

type fitResp struct {
	ModelName string   `json:"model_name"`
	Version   string   `json:"version"`
	RMSE      float64  `json:"rmse"`
	MAPE      float64  `json:"mape"`
	R2        *float64 `json:"r2"` // null when target variance is zero
}

func (t *HTTPTrainer) Fit(ctx context.Context, train, test []models.SupervisedRow, featureCols []string, targetCol string) (models.TrainResult, error) {
	var result models.TrainResult
	req := fitReq{
		Rows:        make([]fitRow, 0, len(train)+len(test)),
		FeatureCols: featureCols,
		TargetCol:   targetCol,
	}
	for _, r := range append(append([]models.SupervisedRow{}, train...), test...) {
		req.Rows = append(req.Rows, toFitRow(r, featureCols))
	}

	var fr fitResp
	if err := t.postJSONWithRetry(ctx, "/model/fit", req, &fr); err != nil {
		return result, fmt.Errorf("fit: %w", err)
	}
	result.ModelName = fr.ModelName
	result.Version = fr.Version
	result.RMSE = fr.RMSE
	result.MAPE = fr.MAPE
	result.R2 = fr.R2
	result.TrainedAt = time.Now().UTC()
	return result, nil
}

type predictReq struct {
	Model   string               `json:"model"`
	Version string               `json:"version"`
	Rows    []map[string]float64 `json:"rows"`
}

type predictResp struct {
	Predictions []float64 `json:"predictions"`
}

func (t *HTTPTrainer) Predict(ctx context.Context, modelName, version string, rows []models.FeatureRow) ([]float64, error) {
	req := predictReq{Model: modelName, Version: version, Rows: make([]map[string]float64, 0, len(rows))}
	for _, r := range rows {
		req.Rows = append(req.Rows, featureMap(r))
	}
	var pr predictResp
	if err := t.postJSONWithRetry(ctx, "/model/predict", req, &pr); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(pr.Predictions) != len(rows) {
		return nil, fmt.Errorf("predict: got %d predictions for %d rows", len(pr.Predictions), len(rows))
	}
	return pr.Predictions, nil
}

func (t *HTTPTrainer) postJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if t.client == nil || t.baseURL == "" {
		return fmt.Errorf("training http client not initialized")
	}
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    t.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func (t *HTTPTrainer) postJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if t.attempts <= 1 {
		return t.postJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= t.attempts; i++ {
		err = t.postJSON(ctx, path, payload, dest)
		if err == nil {
			return nil
		}
		// simple backoff
		select {
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func toFitRow(r models.SupervisedRow, featureCols []string) fitRow {
	return fitRow{
		Symbol:    r.Symbol,
		Timestamp: r.Timestamp,
		Features:  featureMapCols(r.FeatureRow, featureCols),
		Target:    r.Target,
		Split:     r.Split,
	}
}

func featureMap(r models.FeatureRow) map[string]float64 {
	return featureMapCols(r, models.FeatureColumns())
}

func featureMapCols(r models.FeatureRow, cols []string) map[string]float64 {
	m := make(map[string]float64, len(cols))
	for _, c := range cols {
		if v, ok := r.Value(c); ok {
			m[c] = v
		}
	}
	return m
}

var _ domsvc.ModelTrainer = (*HTTPTrainer)(nil)
