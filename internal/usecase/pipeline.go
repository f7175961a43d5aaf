package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
	"MarketForge/internal/services/dataset"
	"MarketForge/internal/services/drift"
	"MarketForge/internal/services/features"
	"MarketForge/internal/services/synth"
	applogger "MarketForge/pkg/logger"
)

// PipelineConfig carries the tunables for one runner instance.
type PipelineConfig struct {
	Session           synth.SessionConfig
	Seed              int64
	Horizon           int
	Split             dataset.SplitPolicy
	DriftBins         int
	MonitoredFeatures []string
	Workers           int
}

// PipelineRunner executes the synthesis -> features -> dataset -> drift
// chain over one immutable snapshot of daily bars. Each run is idempotent:
// the same inputs and seed reproduce identical outputs, and every derived
// table is fully overwritten.
type PipelineRunner struct {
	bars    domrepo.BarStore
	feats   domrepo.FeatureStore
	ds      domrepo.DatasetStore
	dr      domrepo.DriftStore
	attrs   domrepo.AttributeStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	cfg     PipelineConfig
	l       *applogger.Logger
}

func NewPipelineRunner(
	bars domrepo.BarStore,
	feats domrepo.FeatureStore,
	ds domrepo.DatasetStore,
	dr domrepo.DriftStore,
	attrs domrepo.AttributeStore,
	pub domrepo.Publisher,
	metrics domrepo.Metrics,
	cfg PipelineConfig,
) *PipelineRunner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DriftBins <= 0 {
		cfg.DriftBins = drift.DefaultBins
	}
	if len(cfg.MonitoredFeatures) == 0 {
		cfg.MonitoredFeatures = append([]string{"close", "volume"}, models.FeatureColumns()...)
	}
	return &PipelineRunner{
		bars: bars, feats: feats, ds: ds, dr: dr,
		attrs: attrs, pub: pub, metrics: metrics, cfg: cfg,
	}
}

// SetLogger injects a structured logger.
func (r *PipelineRunner) SetLogger(l *applogger.Logger) { r.l = l }

// Run executes one full pipeline pass and returns the structured summary.
// Per-symbol degeneracies are isolated in the summary; only structural
// failures (no input, impossible split, storage errors) abort the run.
func (r *PipelineRunner) Run(ctx context.Context, p models.RunParams) (*models.RunSummary, error) {
	started := time.Now()
	summary := &models.RunSummary{
		RunID:     p.RunID,
		StartedAt: started.UTC(),
		Errors:    make(map[string]string),
	}

	daily, err := r.bars.GetDailyBars(ctx, p.Symbols, p.From, p.To)
	if err != nil {
		r.metrics.RecordError("daily_bars_read")
		return nil, fmt.Errorf("read daily bars: %w", err)
	}
	summary.BarsRead = len(daily)
	if len(daily) == 0 {
		return nil, fmt.Errorf("no daily bars in [%s, %s]", p.From.Format("2006-01-02"), p.To.Format("2006-01-02"))
	}

	valid, rejected := r.validateBars(daily, summary)
	summary.BarsRejected = rejected

	intraday := r.synthesizeAll(valid, summary)
	summary.BarsSynthesized = len(intraday)
	if len(intraday) == 0 {
		return nil, fmt.Errorf("no intraday bars synthesized (all %d daily bars rejected)", len(daily))
	}
	if err := r.persist(ctx, "intraday_bars", func() error {
		return r.bars.ReplaceIntradayBars(ctx, intraday)
	}); err != nil {
		return nil, err
	}
	r.metrics.RecordRowsWritten("intraday_bars", len(intraday))

	sectors, err := r.attrs.GetSectors(ctx, symbolsOf(valid))
	if err != nil {
		// Attribute table is a left join: unreachable attributes degrade to
		// nil sectors instead of failing the run.
		r.metrics.RecordError("attributes_read")
		summary.Errors["attributes"] = err.Error()
		sectors = nil
	}

	stageStart := time.Now()
	featRows := features.Compute(intraday, sectors)
	r.metrics.RecordStageLatency("features", time.Since(stageStart).Seconds())
	summary.FeatureRows = len(featRows)
	if err := r.persist(ctx, "price_features", func() error {
		return r.feats.ReplaceFeatures(ctx, featRows)
	}); err != nil {
		return nil, err
	}
	r.metrics.RecordRowsWritten("price_features", len(featRows))

	train, test, err := dataset.Build(featRows, r.cfg.Horizon, r.cfg.Split)
	if err != nil {
		r.metrics.RecordError("dataset_split")
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	summary.TrainRows = len(train)
	summary.TestRows = len(test)
	if err := r.persist(ctx, "supervised_rows", func() error {
		return r.ds.ReplaceDataset(ctx, p.RunID, train, test)
	}); err != nil {
		return nil, err
	}
	r.metrics.RecordRowsWritten("supervised_rows", len(train)+len(test))

	reports := r.monitorDrift(featRows, p.RunID, summary)
	if err := r.persist(ctx, "drift_psi", func() error {
		return r.dr.ReplaceReports(ctx, p.RunID, reports)
	}); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(started)
	r.metrics.RecordStageLatency("run", summary.Duration.Seconds())

	if r.pub != nil {
		if err := r.pub.PublishSummary(ctx, *summary); err != nil {
			r.metrics.RecordError("summary_publish")
			summary.Errors["publish"] = err.Error()
		}
	}
	if r.l != nil {
		r.l.Info("pipeline run complete",
			applogger.String("run_id", p.RunID),
			applogger.Int("bars_synthesized", summary.BarsSynthesized),
			applogger.Int("feature_rows", summary.FeatureRows),
			applogger.Int("train_rows", summary.TrainRows),
			applogger.Int("test_rows", summary.TestRows),
			applogger.Duration("duration_ms", summary.Duration),
		)
	}
	return summary, nil
}

// validateBars enforces the daily bar invariant at ingestion. Invalid bars
// are rejected explicitly and counted, never propagated as NaN.
func (r *PipelineRunner) validateBars(daily []models.DailyBar, summary *models.RunSummary) ([]models.DailyBar, int) {
	valid := make([]models.DailyBar, 0, len(daily))
	rejected := 0
	for _, b := range daily {
		if err := b.Validate(); err != nil {
			rejected++
			r.metrics.RecordError("invalid_bar")
			summary.Errors[b.Symbol] = err.Error()
			if r.l != nil {
				r.l.Warn("daily bar rejected", applogger.String("symbol", b.Symbol), applogger.Error(err))
			}
			continue
		}
		valid = append(valid, b)
	}
	return valid, rejected
}

// synthesizeAll expands daily bars per symbol on a bounded worker pool.
// Symbols carry no cross-dependencies, so scheduling order does not matter;
// determinism comes from the per-(symbol, date) seed, not worker order.
func (r *PipelineRunner) synthesizeAll(daily []models.DailyBar, summary *models.RunSummary) []models.IntradayBar {
	bySymbol := make(map[string][]models.DailyBar)
	for _, b := range daily {
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}
	summary.SymbolsTotal = len(bySymbol)

	type result struct {
		symbol string
		bars   []models.IntradayBar
		err    error
	}

	jobs := make(chan []models.DailyBar)
	results := make(chan result, len(bySymbol))
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bars := range jobs {
				out := make([]models.IntradayBar, 0, len(bars)*r.cfg.Session.Steps())
				var failed error
				for _, b := range bars {
					rng := rand.New(rand.NewSource(synth.SeedFor(r.cfg.Seed, b.Symbol, b.Date)))
					ib, err := synth.Synthesize(b, r.cfg.Session, rng)
					if err != nil {
						failed = err
						break
					}
					out = append(out, ib...)
				}
				results <- result{symbol: bars[0].Symbol, bars: out, err: failed}
			}
		}()
	}
	for _, bars := range bySymbol {
		jobs <- bars
	}
	close(jobs)
	wg.Wait()
	close(results)

	var all []models.IntradayBar
	for res := range results {
		if res.err != nil {
			summary.SymbolsDropped = append(summary.SymbolsDropped, res.symbol)
			summary.Errors[res.symbol] = res.err.Error()
			r.metrics.RecordError("synthesize")
			continue
		}
		r.metrics.RecordBars("synthesize", res.symbol, len(res.bars))
		all = append(all, res.bars...)
	}
	return all
}

// monitorDrift splits the feature window at its timestamp midpoint:
// reference strictly precedes current, so the windows are disjoint by
// construction. The monitor itself does not re-validate this.
func (r *PipelineRunner) monitorDrift(rows []models.FeatureRow, runID string, summary *models.RunSummary) []models.DriftReport {
	if len(rows) == 0 {
		return nil
	}
	minTS, maxTS := rows[0].Timestamp, rows[0].Timestamp
	for _, row := range rows {
		if row.Timestamp.Before(minTS) {
			minTS = row.Timestamp
		}
		if row.Timestamp.After(maxTS) {
			maxTS = row.Timestamp
		}
	}
	mid := minTS.Add(maxTS.Sub(minTS) / 2)

	reference := make(map[string][]float64, len(r.cfg.MonitoredFeatures))
	current := make(map[string][]float64, len(r.cfg.MonitoredFeatures))
	for _, name := range r.cfg.MonitoredFeatures {
		for _, row := range rows {
			v, ok := row.Value(name)
			if !ok {
				continue // nil feature values are dropped, not zeroed
			}
			if row.Timestamp.Before(mid) {
				reference[name] = append(reference[name], v)
			} else {
				current[name] = append(current[name], v)
			}
		}
		if reference[name] == nil {
			reference[name] = []float64{}
		}
	}

	reports := drift.Report(reference, current, r.cfg.DriftBins, runID)
	for _, rep := range reports {
		if rep.PSI == nil {
			summary.NilPSIFeatures = append(summary.NilPSIFeatures, rep.Feature)
			continue
		}
		r.metrics.RecordPSI(rep.Feature, *rep.PSI)
	}
	return reports
}

func (r *PipelineRunner) persist(ctx context.Context, table string, write func() error) error {
	start := time.Now()
	if err := write(); err != nil {
		r.metrics.RecordError(table + "_write")
		return fmt.Errorf("persist %s: %w", table, err)
	}
	r.metrics.RecordStageLatency(table+"_write", time.Since(start).Seconds())
	return nil
}

func symbolsOf(bars []models.DailyBar) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, b := range bars {
		if _, ok := seen[b.Symbol]; ok {
			continue
		}
		seen[b.Symbol] = struct{}{}
		out = append(out, b.Symbol)
	}
	return out
}
