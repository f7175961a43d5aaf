package drift

import (
	"math"
	"time"

	"MarketForge/internal/domain/models"
)

// proportionFloor replaces zero bin proportions to keep ln() finite.
const proportionFloor = 1e-6

// DefaultBins is the histogram resolution used when none is configured.
const DefaultBins = 10

// PSI computes the Population Stability Index between a reference and a
// current sample of the same feature. Returns nil when either series is
// empty after dropping non-finite values, or when the combined value range
// has zero width. Higher scores mean larger shift; thresholding is the
// caller's policy, not the monitor's.
func PSI(reference, current []float64, bins int) *float64 {
	if bins <= 0 {
		bins = DefaultBins
	}
	ref := dropNonFinite(reference)
	cur := dropNonFinite(current)
	if len(ref) == 0 || len(cur) == 0 {
		return nil
	}

	lo, hi := ref[0], ref[0]
	for _, x := range ref {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	for _, x := range cur {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if !(hi > lo) {
		return nil
	}

	refPct := proportions(ref, lo, hi, bins)
	curPct := proportions(cur, lo, hi, bins)

	var score float64
	for i := 0; i < bins; i++ {
		score += (curPct[i] - refPct[i]) * math.Log(curPct[i]/refPct[i])
	}
	return &score
}

// Report computes one DriftReport per feature. Each feature is independent;
// a degenerate feature yields a nil score, never an error.
func Report(reference, current map[string][]float64, bins int, runID string) []models.DriftReport {
	now := time.Now().UTC()
	out := make([]models.DriftReport, 0, len(reference))
	for name, ref := range reference {
		out = append(out, models.DriftReport{
			Feature:   name,
			PSI:       PSI(ref, current[name], bins),
			RunID:     runID,
			CreatedAt: now,
		})
	}
	return out
}

// proportions histograms xs over [lo, hi] into equal-width bins and returns
// per-bin fractions floored at proportionFloor.
func proportions(xs []float64, lo, hi float64, bins int) []float64 {
	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, x := range xs {
		idx := int((x - lo) / width)
		if idx >= bins {
			idx = bins - 1 // upper edge is inclusive
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	out := make([]float64, bins)
	n := float64(len(xs))
	for i, c := range counts {
		out[i] = math.Max(float64(c)/n, proportionFloor)
	}
	return out
}

func dropNonFinite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
