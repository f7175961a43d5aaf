package dataset

import (
	"errors"
	"sort"
	"time"

	"MarketForge/internal/domain/models"
)

// ErrEmptyPartition is the hard failure for a split that cannot produce two
// non-empty partitions after exhausting every fallback cutoff.
var ErrEmptyPartition = errors.New("dataset: cannot split into non-empty train and test partitions")

// SplitPolicy controls the time-ordered train/test split. Trailing cutoffs
// are tried in order; the proportional fraction is the last resort.
type SplitPolicy struct {
	CutoffDays []int
	Fraction   float64
}

// DefaultSplitPolicy mirrors the trailing 30/60/90/120-day candidate search
// with an 80/20 proportional fallback.
func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{CutoffDays: []int{30, 60, 90, 120}, Fraction: 0.8}
}

// Build attaches a forward relative-return target to each feature row and
// splits the labeled rows into train/test by timestamp. The target looks
// ahead `horizon` positions within the row's own symbol sequence; trailing
// rows without a future bar are dropped.
func Build(rows []models.FeatureRow, horizon int, policy SplitPolicy) (train, test []models.SupervisedRow, err error) {
	if horizon < 1 {
		horizon = 1
	}
	if len(policy.CutoffDays) == 0 {
		policy = DefaultSplitPolicy()
	}
	if policy.Fraction <= 0 || policy.Fraction >= 1 {
		policy.Fraction = 0.8
	}

	labeled := label(rows, horizon)
	if len(labeled) == 0 {
		return nil, nil, ErrEmptyPartition
	}

	minTS, maxTS := labeled[0].Timestamp, labeled[0].Timestamp
	for _, r := range labeled {
		if r.Timestamp.Before(minTS) {
			minTS = r.Timestamp
		}
		if r.Timestamp.After(maxTS) {
			maxTS = r.Timestamp
		}
	}

	for _, days := range policy.CutoffDays {
		cutoff := maxTS.Add(-time.Duration(days) * 24 * time.Hour)
		if tr, te, ok := partition(labeled, cutoff); ok {
			return tr, te, nil
		}
	}

	// Proportional fallback for datasets spanning less than the shortest
	// trailing window.
	span := maxTS.Sub(minTS)
	cutoff := minTS.Add(time.Duration(float64(span) * policy.Fraction))
	if tr, te, ok := partition(labeled, cutoff); ok {
		return tr, te, nil
	}
	return nil, nil, ErrEmptyPartition
}

// label computes per-symbol forward returns. Rows are grouped per symbol in
// timestamp order; position-based look-ahead, not wall-clock.
func label(rows []models.FeatureRow, horizon int) []models.SupervisedRow {
	sorted := make([]models.FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]models.SupervisedRow, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Symbol == sorted[start].Symbol {
			end++
		}
		for i := start; i+horizon < end; i++ {
			if sorted[i].Close == 0 {
				continue
			}
			out = append(out, models.SupervisedRow{
				FeatureRow: sorted[i],
				Target:     sorted[i+horizon].Close/sorted[i].Close - 1,
			})
		}
		start = end
	}
	return out
}

// partition splits rows at the cutoff: train strictly before, test on/after.
// Returns ok only when both sides are non-empty.
func partition(rows []models.SupervisedRow, cutoff time.Time) (train, test []models.SupervisedRow, ok bool) {
	for _, r := range rows {
		if r.Timestamp.Before(cutoff) {
			r.Split = models.SplitTrain
			train = append(train, r)
		} else {
			r.Split = models.SplitTest
			test = append(test, r)
		}
	}
	return train, test, len(train) > 0 && len(test) > 0
}
