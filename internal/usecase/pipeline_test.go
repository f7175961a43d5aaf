package usecase

import (
	"context"
	"testing"
	"time"

	"MarketForge/internal/domain/models"
	"MarketForge/internal/services/dataset"
	"MarketForge/internal/services/synth"
)

type fakeStores struct {
	daily    []models.DailyBar
	intraday []models.IntradayBar
	features []models.FeatureRow
	train    []models.SupervisedRow
	test     []models.SupervisedRow
	reports  []models.DriftReport
	sectors  map[string]string

	intradayReplaces int
	summaries        []models.RunSummary
}

func (f *fakeStores) GetDailyBars(_ context.Context, _ []string, _, _ time.Time) ([]models.DailyBar, error) {
	return f.daily, nil
}
func (f *fakeStores) StoreDailyBars(_ context.Context, bars []models.DailyBar) error {
	f.daily = append(f.daily, bars...)
	return nil
}
func (f *fakeStores) ReplaceIntradayBars(_ context.Context, bars []models.IntradayBar) error {
	f.intradayReplaces++
	f.intraday = append([]models.IntradayBar(nil), bars...)
	return nil
}
func (f *fakeStores) GetIntradayBars(_ context.Context, _ string, _, _ time.Time) ([]models.IntradayBar, error) {
	return f.intraday, nil
}
func (f *fakeStores) Health(_ context.Context) error { return nil }

func (f *fakeStores) ReplaceFeatures(_ context.Context, rows []models.FeatureRow) error {
	f.features = append([]models.FeatureRow(nil), rows...)
	return nil
}
func (f *fakeStores) GetFeatures(_ context.Context, _ string, _, _ time.Time, _ int) ([]models.FeatureRow, error) {
	return f.features, nil
}

func (f *fakeStores) ReplaceDataset(_ context.Context, _ string, train, test []models.SupervisedRow) error {
	f.train = append([]models.SupervisedRow(nil), train...)
	f.test = append([]models.SupervisedRow(nil), test...)
	return nil
}

func (f *fakeStores) GetDataset(_ context.Context, _ string) ([]models.SupervisedRow, []models.SupervisedRow, error) {
	return f.train, f.test, nil
}

func (f *fakeStores) ReplaceReports(_ context.Context, _ string, reports []models.DriftReport) error {
	f.reports = append([]models.DriftReport(nil), reports...)
	return nil
}
func (f *fakeStores) GetReports(_ context.Context, _ string) ([]models.DriftReport, error) {
	return f.reports, nil
}

func (f *fakeStores) GetSectors(_ context.Context, _ []string) (map[string]string, error) {
	return f.sectors, nil
}

func (f *fakeStores) PublishSummary(_ context.Context, s models.RunSummary) error {
	f.summaries = append(f.summaries, s)
	return nil
}
func (f *fakeStores) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordBars(string, string, int)     {}
func (noopMetrics) RecordRowsWritten(string, int)      {}
func (noopMetrics) RecordStageLatency(string, float64) {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordPSI(string, float64)          {}

func testConfig() PipelineConfig {
	return PipelineConfig{
		Session: synth.SessionConfig{
			StartOffset: 10 * time.Hour,
			EndOffset:   16 * time.Hour,
			Interval:    time.Hour,
		},
		Seed:    42,
		Horizon: 3,
		Split:   dataset.DefaultSplitPolicy(),
		Workers: 2,
	}
}

func fiveDayInput() []models.DailyBar {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	bars := make([]models.DailyBar, 0, 5)
	for i := 0; i < 5; i++ {
		bars = append(bars, models.DailyBar{
			Symbol: "ACME",
			Date:   base.AddDate(0, 0, i),
			Open:   100, High: 102, Low: 99, Close: 101,
			Volume: 6000,
		})
	}
	return bars
}

func newTestRunner(f *fakeStores) *PipelineRunner {
	return NewPipelineRunner(f, f, f, f, f, f, noopMetrics{}, testConfig())
}

func TestRunEndToEnd(t *testing.T) {
	f := &fakeStores{daily: fiveDayInput(), sectors: map[string]string{"ACME": "Industrials"}}
	r := newTestRunner(f)

	summary, err := r.Run(context.Background(), models.RunParams{RunID: "run-1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.BarsSynthesized != 30 {
		t.Fatalf("expected 30 intraday bars (5 days x 6 steps), got %d", summary.BarsSynthesized)
	}
	perDay := make(map[time.Time]int64)
	for _, b := range f.intraday {
		day := b.Timestamp.Truncate(24 * time.Hour)
		perDay[day] += b.Volume
		if b.Open < 99 || b.Open > 102 || b.Close < 99 || b.Close > 102 {
			t.Fatalf("bar at %s outside day range: open=%.4f close=%.4f", b.Timestamp, b.Open, b.Close)
		}
	}
	for day, v := range perDay {
		if v != 6000 {
			t.Fatalf("day %s volume %d, want 6000", day.Format("2006-01-02"), v)
		}
	}

	if summary.FeatureRows != 30 {
		t.Fatalf("expected 30 feature rows, got %d", summary.FeatureRows)
	}
	if f.features[0].Ret1 != nil {
		t.Fatal("first row ret_1 should be nil")
	}
	for i, row := range f.features {
		if i > 0 && row.Ret1 == nil {
			t.Fatalf("row %d ret_1 unexpectedly nil", i)
		}
		if row.Sector == nil || *row.Sector != "Industrials" {
			t.Fatalf("row %d sector not joined", i)
		}
	}

	// horizon 3 drops the last 3 rows from the labeled set
	if got := summary.TrainRows + summary.TestRows; got != 27 {
		t.Fatalf("labeled rows = %d, want 27", got)
	}
	if summary.TrainRows == 0 || summary.TestRows == 0 {
		t.Fatalf("empty partition: train=%d test=%d", summary.TrainRows, summary.TestRows)
	}
	lastTrain := f.train[len(f.train)-1].Timestamp
	for _, row := range f.test {
		if !row.Timestamp.After(lastTrain) {
			t.Fatalf("test row at %s not after last train row %s", row.Timestamp, lastTrain)
		}
	}

	if len(f.reports) == 0 {
		t.Fatal("no drift reports written")
	}
	for _, rep := range f.reports {
		if rep.Feature != "close" {
			continue
		}
		if rep.PSI == nil {
			t.Fatal("close PSI unexpectedly nil for non-degenerate windows")
		}
		if *rep.PSI < 0 {
			t.Fatalf("close PSI negative: %f", *rep.PSI)
		}
	}

	if len(f.summaries) != 1 || f.summaries[0].RunID != "run-1" {
		t.Fatalf("summary not published: %+v", f.summaries)
	}
}

func TestRunDeterministic(t *testing.T) {
	first := &fakeStores{daily: fiveDayInput()}
	if _, err := newTestRunner(first).Run(context.Background(), models.RunParams{RunID: "a"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := &fakeStores{daily: fiveDayInput()}
	if _, err := newTestRunner(second).Run(context.Background(), models.RunParams{RunID: "b"}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.intraday) != len(second.intraday) {
		t.Fatalf("bar counts differ: %d vs %d", len(first.intraday), len(second.intraday))
	}
	for i := range first.intraday {
		if first.intraday[i] != second.intraday[i] {
			t.Fatalf("bar %d differs between identical runs: %+v vs %+v", i, first.intraday[i], second.intraday[i])
		}
	}
}

func TestRunRejectsInvalidBarsButContinues(t *testing.T) {
	bars := fiveDayInput()
	bad := models.DailyBar{
		Symbol: "BROKEN",
		Date:   bars[0].Date,
		Open:   100, High: 99, Low: 101, Close: 100, // low > high
		Volume: 10,
	}
	f := &fakeStores{daily: append(bars, bad)}

	summary, err := newTestRunner(f).Run(context.Background(), models.RunParams{RunID: "run-2"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BarsRejected != 1 {
		t.Fatalf("expected 1 rejected bar, got %d", summary.BarsRejected)
	}
	if summary.BarsSynthesized != 30 {
		t.Fatalf("valid symbol should still synthesize 30 bars, got %d", summary.BarsSynthesized)
	}
	if _, ok := summary.Errors["BROKEN"]; !ok {
		t.Fatal("rejected bar not reported in summary errors")
	}
}

func TestRunNoInputFails(t *testing.T) {
	f := &fakeStores{}
	if _, err := newTestRunner(f).Run(context.Background(), models.RunParams{RunID: "run-3"}); err == nil {
		t.Fatal("expected error for empty input window")
	}
}

func TestRunMissingSectorLeftJoin(t *testing.T) {
	f := &fakeStores{daily: fiveDayInput()} // no sectors at all
	if _, err := newTestRunner(f).Run(context.Background(), models.RunParams{RunID: "run-4"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, row := range f.features {
		if row.Sector != nil {
			t.Fatalf("row %d sector should be nil without attributes", i)
		}
	}
}
