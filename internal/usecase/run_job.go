package usecase

import (
	"context"
	"sync"
	"time"

	"MarketForge/internal/domain/models"
	applogger "MarketForge/pkg/logger"
	"MarketForge/pkg/queue"
)

// RunJobType is the queue message type that triggers a pipeline run.
const RunJobType = "pipeline.run"

const runTimeout = 10 * time.Minute

// RunTracker holds the single-flight state of pipeline runs. At most one
// run executes at a time; the latest completed summary is kept for the API.
type RunTracker struct {
	mu      sync.Mutex
	running bool
	latest  *models.RunSummary
	lastErr error
}

func NewRunTracker() *RunTracker { return &RunTracker{} }

// TryStart claims the run slot. False means a run is already in flight.
func (t *RunTracker) TryStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

// Abort releases the slot without recording a result.
func (t *RunTracker) Abort() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Finish releases the slot and records the outcome.
func (t *RunTracker) Finish(s *models.RunSummary, err error) {
	t.mu.Lock()
	t.running = false
	if s != nil {
		t.latest = s
	}
	t.lastErr = err
	t.mu.Unlock()
}

// Latest returns the most recent completed summary, if any.
func (t *RunTracker) Latest() (*models.RunSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.latest != nil
}

// Running reports whether a run is currently in flight.
func (t *RunTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// SummaryBroadcaster pushes completed run summaries to live consumers.
type SummaryBroadcaster interface {
	Broadcast(models.RunSummary)
}

// RunJob executes queued pipeline runs one at a time.
type RunJob struct {
	runner  *PipelineRunner
	tracker *RunTracker
	bcast   SummaryBroadcaster
	l       *applogger.Logger
}

func NewRunJob(runner *PipelineRunner, tracker *RunTracker) *RunJob {
	return &RunJob{runner: runner, tracker: tracker}
}

// SetBroadcaster attaches a live summary sink.
func (j *RunJob) SetBroadcaster(b SummaryBroadcaster) { j.bcast = b }

// SetLogger injects a structured logger.
func (j *RunJob) SetLogger(l *applogger.Logger) { j.l = l }

func (j *RunJob) Name() string { return "pipeline_run" }
func (j *RunJob) Type() string { return RunJobType }

func (j *RunJob) Handle(ctx context.Context, payload interface{}) error {
	params, err := queue.ParsePayload[models.RunParams](payload)
	if err != nil {
		j.tracker.Abort()
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	summary, err := j.runner.Run(runCtx, *params)
	j.tracker.Finish(summary, err)
	if err != nil {
		if j.l != nil {
			j.l.Error("pipeline run failed",
				applogger.String("run_id", params.RunID),
				applogger.Error(err))
		}
		// The run consumed its trigger; retrying would race the next one.
		return nil
	}
	if j.bcast != nil {
		j.bcast.Broadcast(*summary)
	}
	return nil
}

var _ queue.Job = (*RunJob)(nil)
