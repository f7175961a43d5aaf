package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"MarketForge/internal/domain/models"
)

func mkRows(symbol string, start time.Time, step time.Duration, closes ...float64) []models.FeatureRow {
	out := make([]models.FeatureRow, len(closes))
	for i, c := range closes {
		out[i] = models.FeatureRow{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * step),
			Close:     c,
		}
	}
	return out
}

func TestTargetComputation(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := mkRows("AAPL", start, time.Hour, 100, 110, 121)
	train, test, err := Build(rows, 1, SplitPolicy{CutoffDays: []int{30}, Fraction: 0.5})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	all := append(append([]models.SupervisedRow{}, train...), test...)
	// Horizon 1 drops the last row: 3 inputs -> 2 labeled.
	if len(all) != 2 {
		t.Fatalf("expected 2 labeled rows, got %d", len(all))
	}
	for _, r := range all {
		if math.Abs(r.Target-0.1) > 1e-12 {
			t.Fatalf("target = %v, want 0.1", r.Target)
		}
	}
}

func TestTrailingCutoffSelected(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// 200 daily rows: the 30-day trailing cutoff yields non-empty partitions.
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	rows := mkRows("AAPL", start, 24*time.Hour, closes...)
	train, test, err := Build(rows, 1, DefaultSplitPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(train) == 0 || len(test) == 0 {
		t.Fatalf("empty partition: train=%d test=%d", len(train), len(test))
	}
	cutoff := rows[len(rows)-2].Timestamp.Add(-30 * 24 * time.Hour)
	for _, r := range train {
		if !r.Timestamp.Before(cutoff) {
			t.Fatalf("train row %v on/after cutoff %v", r.Timestamp, cutoff)
		}
		if r.Split != models.SplitTrain {
			t.Fatalf("train row labeled %q", r.Split)
		}
	}
	for _, r := range test {
		if r.Timestamp.Before(cutoff) {
			t.Fatalf("test row %v before cutoff %v", r.Timestamp, cutoff)
		}
		if r.Split != models.SplitTest {
			t.Fatalf("test row labeled %q", r.Split)
		}
	}
}

func TestProportionalFallback(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	// 10 hourly rows span well under 30 days: every trailing cutoff fails.
	rows := mkRows("AAPL", start, time.Hour, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	train, test, err := Build(rows, 1, DefaultSplitPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(train) == 0 || len(test) == 0 {
		t.Fatalf("fallback produced empty partition: train=%d test=%d", len(train), len(test))
	}
	if len(train) <= len(test) {
		t.Fatalf("0.8 fraction should favor train: train=%d test=%d", len(train), len(test))
	}
}

func TestSplitNonEmptinessMinimalInput(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := mkRows("AAPL", start, time.Hour, 100, 101, 102)
	train, test, err := Build(rows, 1, DefaultSplitPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(train) == 0 || len(test) == 0 {
		t.Fatalf("empty partition on minimal input: train=%d test=%d", len(train), len(test))
	}
}

func TestEmptyInputFails(t *testing.T) {
	if _, _, err := Build(nil, 1, DefaultSplitPolicy()); !errors.Is(err, ErrEmptyPartition) {
		t.Fatalf("expected ErrEmptyPartition, got %v", err)
	}
}

func TestAllRowsDroppedByHorizon(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := mkRows("AAPL", start, time.Hour, 100, 101)
	if _, _, err := Build(rows, 5, DefaultSplitPolicy()); !errors.Is(err, ErrEmptyPartition) {
		t.Fatalf("expected ErrEmptyPartition, got %v", err)
	}
}

func TestPerSymbolLookAhead(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := append(
		mkRows("AAPL", start, time.Hour, 100, 110, 121),
		mkRows("MSFT", start, time.Hour, 50, 55, 60.5)...,
	)
	train, test, err := Build(rows, 1, DefaultSplitPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, r := range append(append([]models.SupervisedRow{}, train...), test...) {
		if math.Abs(r.Target-0.1) > 1e-12 {
			t.Fatalf("%s target = %v, want 0.1 (cross-symbol leak?)", r.Symbol, r.Target)
		}
	}
}
