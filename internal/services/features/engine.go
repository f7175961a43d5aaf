package features

import (
	"math"
	"sort"

	"MarketForge/internal/domain/models"
)

// Window sizes for the rolling indicators.
const (
	smaShortWindow = 5
	smaLongWindow  = 20
	volWindow      = 20
)

// Compute derives feature rows from intraday bars. Bars are sorted
// defensively by (symbol, timestamp); rolling values are wrong otherwise.
// The sector map is left-joined: unmatched symbols keep a nil sector.
func Compute(bars []models.IntradayBar, sectors map[string]string) []models.FeatureRow {
	sorted := make([]models.IntradayBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]models.FeatureRow, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Symbol == sorted[start].Symbol {
			end++
		}
		var sector *string
		if s, ok := sectors[sorted[start].Symbol]; ok {
			sector = &s
		}
		out = append(out, ComputeSymbol(sorted[start:end], sector)...)
		start = end
	}
	return out
}

// ComputeSymbol computes rolling features for one symbol's ordered run.
// Callers must pass bars in ascending timestamp order; Compute handles
// sorting and partitioning. Independent across symbols, so safe to run on
// parallel workers per symbol.
func ComputeSymbol(bars []models.IntradayBar, sector *string) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(bars))
	for i, b := range bars {
		row := models.FeatureRow{
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp,
			Close:     b.Close,
			Volume:    b.Volume,
			Sector:    sector,
		}

		if i > 0 && bars[i-1].Close != 0 {
			r := b.Close/bars[i-1].Close - 1
			row.Ret1 = &r
			m := math.Max(r, 0)
			row.MomentumProxy = &m
		}

		// Partial windows average over however many rows exist
		// ("rows between -N+1 and 0" semantics), never nil.
		s5 := trailingMean(bars, i, smaShortWindow)
		row.SMA5 = &s5
		s20 := trailingMean(bars, i, smaLongWindow)
		row.SMA20 = &s20
		v20 := trailingStd(bars, i, volWindow)
		row.Vol20 = &v20

		out = append(out, row)
	}
	return out
}

// trailingMean averages close over the window ending at index i, inclusive.
func trailingMean(bars []models.IntradayBar, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	var sum float64
	for j := lo; j <= i; j++ {
		sum += bars[j].Close
	}
	return sum / float64(i-lo+1)
}

// trailingStd is the population standard deviation of close over the
// trailing window. A single observation yields 0, not nil.
func trailingStd(bars []models.IntradayBar, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	n := float64(i - lo + 1)
	var sum float64
	for j := lo; j <= i; j++ {
		sum += bars[j].Close
	}
	mean := sum / n
	var ss float64
	for j := lo; j <= i; j++ {
		d := bars[j].Close - mean
		ss += d * d
	}
	return math.Sqrt(ss / n)
}
