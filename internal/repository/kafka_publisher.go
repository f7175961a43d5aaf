package repository

import (
	"context"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
	pkgkafka "MarketForge/pkg/kafka"
)

// KafkaSummaryPublisher announces completed pipeline runs on a Kafka topic.
type KafkaSummaryPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSummaryPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaSummaryPublisher{producer: producer, topic: topic}
}

func (p *KafkaSummaryPublisher) PublishSummary(ctx context.Context, s models.RunSummary) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.RunID), map[string]interface{}{
		"run_id":           s.RunID,
		"started_at":       s.StartedAt,
		"duration_ms":      s.Duration.Milliseconds(),
		"symbols_total":    s.SymbolsTotal,
		"symbols_dropped":  s.SymbolsDropped,
		"bars_read":        s.BarsRead,
		"bars_rejected":    s.BarsRejected,
		"bars_synthesized": s.BarsSynthesized,
		"feature_rows":     s.FeatureRows,
		"train_rows":       s.TrainRows,
		"test_rows":        s.TestRows,
		"nil_psi_features": s.NilPSIFeatures,
		"errors":           s.Errors,
	})
}

func (p *KafkaSummaryPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
