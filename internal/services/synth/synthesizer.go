package synth

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"MarketForge/internal/domain/models"
)

// SessionConfig describes the intraday trading session carved out of a day.
// Offsets are measured from midnight UTC of the bar date.
type SessionConfig struct {
	StartOffset time.Duration
	EndOffset   time.Duration
	Interval    time.Duration
}

// Steps returns the number of intraday bars the session produces, guarded to >= 1.
func (c SessionConfig) Steps() int {
	if c.Interval <= 0 {
		return 1
	}
	n := int((c.EndOffset - c.StartOffset) / c.Interval)
	if n < 1 {
		n = 1
	}
	return n
}

// epsilon keeps the noise scale positive on flat days (high == low).
const epsilon = 1e-9

// SeedFor derives a reproducible per-(symbol, date) seed from a base seed.
// Same inputs always map to the same seed, so reruns are bit-identical.
func SeedFor(base int64, symbol string, date time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	var buf [8]byte
	u := uint64(date.UTC().Unix())
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	h.Write(buf[:])
	return base ^ int64(h.Sum64())
}

// Synthesize expands one daily bar into an ordered sequence of intraday bars.
// Volumes are an exact integer redistribution of the day's volume; every
// open/close is clipped into the day's [low, high] range.
func Synthesize(bar models.DailyBar, cfg SessionConfig, rng *rand.Rand) ([]models.IntradayBar, error) {
	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	steps := cfg.Steps()
	volumes := redistributeVolume(rng, bar.Volume, steps)
	path := pricePath(rng, bar, steps)

	day := time.Date(bar.Date.Year(), bar.Date.Month(), bar.Date.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]models.IntradayBar, 0, steps)
	for i := 0; i < steps; i++ {
		open := path[i]
		closeP := clamp(open+rng.NormFloat64()*0.0008*math.Abs(open), bar.Low, bar.High)
		high := math.Min(bar.High, open+0.002*math.Abs(open))
		low := math.Max(bar.Low, open-0.002*math.Abs(open))
		// Strict OHLC ordering: high/low must bracket open and close.
		high = math.Max(high, math.Max(open, closeP))
		low = math.Min(low, math.Min(open, closeP))

		out = append(out, models.IntradayBar{
			Symbol:    bar.Symbol,
			Timestamp: day.Add(cfg.StartOffset + time.Duration(i)*cfg.Interval),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volumes[i],
		})
	}
	return out, nil
}

// redistributeVolume allocates total across steps buckets via a multinomial
// draw with uniform per-bucket probability. The allocation is exact: values
// are non-negative integers summing to total.
func redistributeVolume(rng *rand.Rand, total int64, steps int) []int64 {
	out := make([]int64, steps)
	if total <= 0 || steps <= 0 {
		return out
	}
	remaining := total
	for i := 0; i < steps-1 && remaining > 0; i++ {
		p := 1.0 / float64(steps-i)
		n := binomial(rng, remaining, p)
		out[i] = n
		remaining -= n
	}
	out[steps-1] = remaining
	return out
}

// binomial draws from Binomial(n, p). Small n uses exact Bernoulli summation;
// large n uses a clamped normal approximation, which keeps the aggregate
// redistribution exact because callers track the remainder explicitly.
func binomial(rng *rand.Rand, n int64, p float64) int64 {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	if n <= 1024 {
		var k int64
		for i := int64(0); i < n; i++ {
			if rng.Float64() < p {
				k++
			}
		}
		return k
	}
	mean := float64(n) * p
	sd := math.Sqrt(float64(n) * p * (1 - p))
	k := int64(math.Round(mean + rng.NormFloat64()*sd))
	if k < 0 {
		k = 0
	}
	if k > n {
		k = n
	}
	return k
}

// pricePath builds the clipped open-price trajectory: linear interpolation
// from open to close perturbed by standardized noise scaled to the day range.
func pricePath(rng *rand.Rand, bar models.DailyBar, steps int) []float64 {
	denom := float64(steps - 1)
	if denom <= 0 {
		denom = 1
	}

	noise := make([]float64, steps)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}
	standardize(noise)

	scale := math.Max((bar.High-bar.Low)/6, epsilon)
	path := make([]float64, steps)
	for i := 0; i < steps; i++ {
		base := bar.Open + (bar.Close-bar.Open)*float64(i)/denom
		path[i] = clamp(base+noise[i]*scale, bar.Low, bar.High)
	}
	return path
}

// standardize rescales xs in place to zero mean and unit variance.
// A zero-variance series is left at zero after mean subtraction.
func standardize(xs []float64) {
	n := float64(len(xs))
	if n == 0 {
		return
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	var ss float64
	for i := range xs {
		xs[i] -= mean
		ss += xs[i] * xs[i]
	}
	sd := math.Sqrt(ss / n)
	if sd <= 0 {
		return
	}
	for i := range xs {
		xs[i] /= sd
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
