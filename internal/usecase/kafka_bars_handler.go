package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
	pkgkafka "MarketForge/pkg/kafka"
)

// KafkaBarsHandler consumes daily bar messages and appends them to storage.
// Bars failing validation are dropped here so the pipeline never sees them.
type KafkaBarsHandler struct {
	topic   string
	bars    domrepo.BarStore
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, bars domrepo.BarStore, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, bars: bars, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, date, o, h, l, c, v}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		Date   string  `json:"date"` // YYYY-MM-DD
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      int64   `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	date, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		h.metrics.RecordError("consumer_bad_date")
		return err
	}
	bar := models.DailyBar{
		Symbol: m.Symbol,
		Date:   date.UTC(),
		Open:   m.O,
		High:   m.H,
		Low:    m.L,
		Close:  m.C,
		Volume: m.V,
	}
	if err := bar.Validate(); err != nil {
		// Malformed market data is dropped, not retried: redelivery would
		// fail identically.
		h.metrics.RecordError("consumer_invalid_bar")
		return nil
	}

	start := time.Now()
	if err := h.bars.StoreDailyBars(ctx, []models.DailyBar{bar}); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordStageLatency("ch_insert", time.Since(start).Seconds())
	h.metrics.RecordBars("ingest", m.Symbol, 1)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
