package features

import (
	"math"
	"testing"
	"time"

	"MarketForge/internal/domain/models"
)

func mkBars(symbol string, closes ...float64) []models.IntradayBar {
	base := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	out := make([]models.IntradayBar, len(closes))
	for i, c := range closes {
		out[i] = models.IntradayBar{
			Symbol:    symbol,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return out
}

func TestRet1AndSMA5(t *testing.T) {
	rows := Compute(mkBars("AAPL", 10, 11, 12, 13, 14), nil)
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[0].Ret1 != nil {
		t.Fatal("ret_1 must be nil at first bar")
	}
	if rows[0].MomentumProxy != nil {
		t.Fatal("momentum_proxy must be nil at first bar")
	}
	if got := *rows[1].Ret1; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("ret_1[1] = %v, want 0.1", got)
	}
	if got := *rows[4].SMA5; got != 12.0 {
		t.Fatalf("sma_5[4] = %v, want 12.0", got)
	}
}

func TestPartialWindows(t *testing.T) {
	rows := Compute(mkBars("AAPL", 10, 20), nil)
	if got := *rows[0].SMA5; got != 10 {
		t.Fatalf("sma_5 at first bar = %v, want 10 (partial window)", got)
	}
	if got := *rows[1].SMA20; got != 15 {
		t.Fatalf("sma_20 over two bars = %v, want 15", got)
	}
	if got := *rows[0].Vol20; got != 0 {
		t.Fatalf("vol_20 of single observation = %v, want 0", got)
	}
	// Population std of {10, 20} is 5.
	if got := *rows[1].Vol20; math.Abs(got-5) > 1e-12 {
		t.Fatalf("vol_20 = %v, want 5", got)
	}
}

func TestMomentumProxyClampsNegative(t *testing.T) {
	rows := Compute(mkBars("AAPL", 10, 9), nil)
	if got := *rows[1].MomentumProxy; got != 0 {
		t.Fatalf("momentum_proxy for negative return = %v, want 0", got)
	}
}

func TestSectorLeftJoin(t *testing.T) {
	bars := append(mkBars("AAPL", 10, 11), mkBars("ZZZZ", 5, 6)...)
	rows := Compute(bars, map[string]string{"AAPL": "Tech"})
	var aapl, zzzz int
	for _, r := range rows {
		switch r.Symbol {
		case "AAPL":
			aapl++
			if r.Sector == nil || *r.Sector != "Tech" {
				t.Fatalf("AAPL sector = %v, want Tech", r.Sector)
			}
		case "ZZZZ":
			zzzz++
			if r.Sector != nil {
				t.Fatalf("unmatched symbol must keep nil sector, got %v", *r.Sector)
			}
		}
	}
	if aapl != 2 || zzzz != 2 {
		t.Fatalf("rows dropped: aapl=%d zzzz=%d", aapl, zzzz)
	}
}

func TestDefensiveSort(t *testing.T) {
	bars := mkBars("AAPL", 10, 11, 12)
	shuffled := []models.IntradayBar{bars[2], bars[0], bars[1]}
	rows := Compute(shuffled, nil)
	if rows[0].Ret1 != nil {
		t.Fatal("first row after sort must have nil ret_1")
	}
	if got := *rows[1].Ret1; math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("ret_1 after defensive sort = %v, want 0.1", got)
	}
}

func TestSymbolsIndependent(t *testing.T) {
	bars := append(mkBars("AAPL", 10, 11), mkBars("MSFT", 100, 90)...)
	rows := Compute(bars, nil)
	for _, r := range rows {
		if r.Ret1 == nil {
			continue
		}
		// Cross-symbol leakage would produce a huge jump at the boundary.
		if math.Abs(*r.Ret1) > 0.5 {
			t.Fatalf("cross-symbol return leak: %v on %s", *r.Ret1, r.Symbol)
		}
	}
}
