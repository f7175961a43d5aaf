package synth

import (
	"math/rand"
	"testing"
	"time"

	"MarketForge/internal/domain/models"
)

func testBar() models.DailyBar {
	return models.DailyBar{
		Symbol: "AAPL",
		Date:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Open:   100,
		High:   102,
		Low:    99,
		Close:  101,
		Volume: 6000,
	}
}

func testSession() SessionConfig {
	return SessionConfig{
		StartOffset: 10 * time.Hour,
		EndOffset:   16 * time.Hour,
		Interval:    time.Hour,
	}
}

func TestVolumeConservation(t *testing.T) {
	cases := []int64{0, 1, 5, 6000, 1_000_000, 50_000_000}
	for _, vol := range cases {
		bar := testBar()
		bar.Volume = vol
		bars, err := Synthesize(bar, testSession(), rand.New(rand.NewSource(42)))
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		var sum int64
		for _, b := range bars {
			if b.Volume < 0 {
				t.Fatalf("negative volume %d", b.Volume)
			}
			sum += b.Volume
		}
		if sum != vol {
			t.Fatalf("volume %d: allocated %d", vol, sum)
		}
	}
}

func TestRangeContainment(t *testing.T) {
	bar := testBar()
	bars, err := Synthesize(bar, testSession(), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(bars) != 6 {
		t.Fatalf("expected 6 bars, got %d", len(bars))
	}
	for _, b := range bars {
		if b.Open < bar.Low || b.Open > bar.High {
			t.Fatalf("open %.4f outside [%.4f, %.4f]", b.Open, bar.Low, bar.High)
		}
		if b.Close < bar.Low || b.Close > bar.High {
			t.Fatalf("close %.4f outside [%.4f, %.4f]", b.Close, bar.Low, bar.High)
		}
	}
}

func TestStrictOHLCOrdering(t *testing.T) {
	bars, err := Synthesize(testBar(), testSession(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for _, b := range bars {
		if b.High < b.Open || b.High < b.Close {
			t.Fatalf("high %.4f below open %.4f / close %.4f", b.High, b.Open, b.Close)
		}
		if b.Low > b.Open || b.Low > b.Close {
			t.Fatalf("low %.4f above open %.4f / close %.4f", b.Low, b.Open, b.Close)
		}
	}
}

func TestDeterminism(t *testing.T) {
	a, err := Synthesize(testBar(), testSession(), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	b, err := Synthesize(testBar(), testSession(), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bar %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSeedForStable(t *testing.T) {
	d := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if SeedFor(42, "AAPL", d) != SeedFor(42, "AAPL", d) {
		t.Fatal("seed not stable")
	}
	if SeedFor(42, "AAPL", d) == SeedFor(42, "MSFT", d) {
		t.Fatal("seed should differ per symbol")
	}
}

func TestSingleStepSession(t *testing.T) {
	cfg := SessionConfig{StartOffset: 10 * time.Hour, EndOffset: 10 * time.Hour, Interval: time.Hour}
	bars, err := Synthesize(testBar(), cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Volume != 6000 {
		t.Fatalf("single bar should carry full volume, got %d", bars[0].Volume)
	}
}

func TestFlatDay(t *testing.T) {
	bar := testBar()
	bar.Open, bar.High, bar.Low, bar.Close = 100, 100, 100, 100
	bars, err := Synthesize(bar, testSession(), rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for _, b := range bars {
		if b.Open != 100 || b.Close != 100 {
			t.Fatalf("flat day bar drifted: %+v", b)
		}
	}
}

func TestInvalidBarRejected(t *testing.T) {
	bar := testBar()
	bar.Low = 103 // low > high
	if _, err := Synthesize(bar, testSession(), rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected validation error")
	}
}
