package drift

import (
	"math"
	"math/rand"
	"testing"
)

func TestIdenticalSeriesNearZero(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	x := make([]float64, 500)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	got := PSI(x, x, 10)
	if got == nil {
		t.Fatal("expected a score for non-degenerate input")
	}
	if math.Abs(*got) > 1e-9 {
		t.Fatalf("PSI(x, x) = %v, want ~0", *got)
	}
}

func TestEmptySeriesNil(t *testing.T) {
	ref := make([]float64, 10)
	for i := range ref {
		ref[i] = 1
	}
	if got := PSI(ref, nil, 10); got != nil {
		t.Fatalf("PSI with empty current = %v, want nil", *got)
	}
	if got := PSI(nil, ref, 10); got != nil {
		t.Fatalf("PSI with empty reference = %v, want nil", *got)
	}
}

func TestZeroWidthRangeNil(t *testing.T) {
	constant := []float64{3, 3, 3, 3}
	if got := PSI(constant, constant, 10); got != nil {
		t.Fatalf("PSI over zero-width range = %v, want nil", *got)
	}
}

func TestNonFiniteValuesDropped(t *testing.T) {
	ref := []float64{1, 2, 3, math.NaN(), math.Inf(1)}
	cur := []float64{1, 2, 3}
	got := PSI(ref, cur, 4)
	if got == nil {
		t.Fatal("expected a score after dropping non-finite values")
	}
	if math.Abs(*got) > 1e-9 {
		t.Fatalf("PSI = %v, want ~0 after dropping NaN/Inf", *got)
	}
}

func TestShiftedDistributionPositive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ref := make([]float64, 1000)
	cur := make([]float64, 1000)
	for i := range ref {
		ref[i] = rng.NormFloat64()
		cur[i] = rng.NormFloat64() + 2 // mean shift
	}
	got := PSI(ref, cur, 10)
	if got == nil {
		t.Fatal("expected a score")
	}
	if *got <= 0.2 {
		t.Fatalf("PSI for strong shift = %v, want > 0.2", *got)
	}
}

func TestReportOneRowPerFeature(t *testing.T) {
	ref := map[string][]float64{
		"ret_1": {0.1, 0.2, 0.3},
		"flat":  {1, 1, 1},
	}
	cur := map[string][]float64{
		"ret_1": {0.1, 0.25, 0.35},
		"flat":  {1, 1},
	}
	reports := Report(ref, cur, 10, "run-1")
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if r.RunID != "run-1" {
			t.Fatalf("run id = %q", r.RunID)
		}
		switch r.Feature {
		case "ret_1":
			if r.PSI == nil {
				t.Fatal("ret_1 should have a score")
			}
		case "flat":
			if r.PSI != nil {
				t.Fatalf("flat feature should be nil, got %v", *r.PSI)
			}
		default:
			t.Fatalf("unexpected feature %q", r.Feature)
		}
	}
}
