package models

import (
	"fmt"
	"time"
)

// DailyBar is an immutable source OHLCV record, one per (symbol, date).
type DailyBar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Validate checks the daily bar invariant: low <= open,close <= high.
// Invalid bars are rejected at ingestion, never propagated as NaN.
func (b DailyBar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("daily bar: symbol required")
	}
	if b.Volume < 0 {
		return fmt.Errorf("daily bar %s@%s: negative volume %d", b.Symbol, b.Date.Format("2006-01-02"), b.Volume)
	}
	if b.Low > b.High {
		return fmt.Errorf("daily bar %s@%s: low %.4f > high %.4f", b.Symbol, b.Date.Format("2006-01-02"), b.Low, b.High)
	}
	if b.Open < b.Low || b.Open > b.High {
		return fmt.Errorf("daily bar %s@%s: open %.4f outside [%.4f, %.4f]", b.Symbol, b.Date.Format("2006-01-02"), b.Open, b.Low, b.High)
	}
	if b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("daily bar %s@%s: close %.4f outside [%.4f, %.4f]", b.Symbol, b.Date.Format("2006-01-02"), b.Close, b.Low, b.High)
	}
	return nil
}

// IntradayBar is one synthetic intraday OHLCV bar derived from a DailyBar.
// Open/close stay inside the parent day's [low, high]; the per-day volumes
// sum exactly to the day's volume. Never mutated after creation.
type IntradayBar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
