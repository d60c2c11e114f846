package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stepflow/internal/executor"
	"stepflow/internal/models"
	"stepflow/pkg/logger"
	"stepflow/pkg/metrics"
)

var ErrBatchRunning = errors.New("a batch is already running")

// StepSource yields the resolved steps of a scenario in authoring order.
type StepSource interface {
	ScenarioSteps(ctx context.Context, scenarioID uint) ([]models.StepRecord, error)
}

// ChangeObserver is told once per batch that scenario results changed.
type ChangeObserver interface {
	NotifyChanged()
}

type SessionProvider interface {
	CreateSession(ctx context.Context) (executor.Browser, error)
	DestroySession(b executor.Browser) error
}

// ScenarioRepository is the storage surface used by the API, CLI and scheduler.
type ScenarioRepository interface {
	StepSource
	executor.ResultSink
	GetScenario(ctx context.Context, id uint) (*models.Scenario, error)
	FindScenarios(ctx context.Context, ids []uint) ([]models.Scenario, error)
	FindScenariosByNumber(ctx context.Context, numbers []int) ([]models.Scenario, error)
}

type Summary struct {
	BatchID    string    `json:"batch_id"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Stopped    bool      `json:"stopped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Status struct {
	Running        bool     `json:"running"`
	BatchID        string   `json:"batch_id,omitempty"`
	LoginPerformed bool     `json:"login_performed"`
	StopRequested  bool     `json:"stop_requested"`
	Last           *Summary `json:"last,omitempty"`
}

// Orchestrator runs batches of scenarios one at a time on a single browser session.
type Orchestrator struct {
	sessions  SessionProvider
	source    StepSource
	sink      executor.ResultSink
	observer  ChangeObserver
	progress  executor.ProgressSink
	snapshots executor.SnapshotStore
	timeouts  executor.Timeouts
	baseURL   string

	settleDelay time.Duration
	settleTick  time.Duration
	log         *zap.SugaredLogger

	running        atomic.Bool
	stopRequested  atomic.Bool
	loginPerformed atomic.Bool

	mu      sync.Mutex
	batchID string
	last    *Summary
}

type OrchestratorOption func(*Orchestrator)

func WithObserver(obs ChangeObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

func WithProgressSink(p executor.ProgressSink) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.progress = p
		}
	}
}

func WithSnapshots(s executor.SnapshotStore) OrchestratorOption {
	return func(o *Orchestrator) { o.snapshots = s }
}

func WithExecTimeouts(t executor.Timeouts) OrchestratorOption {
	return func(o *Orchestrator) { o.timeouts = t }
}

func WithBaseURL(u string) OrchestratorOption {
	return func(o *Orchestrator) { o.baseURL = u }
}

// WithSettle sets the pause between scenarios and how often it checks for a stop.
func WithSettle(delay, tick time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.settleDelay = delay
		if tick > 0 {
			o.settleTick = tick
		}
	}
}

func WithLogger(l *zap.SugaredLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(sessions SessionProvider, source StepSource, sink executor.ResultSink, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sessions:    sessions,
		source:      source,
		sink:        sink,
		progress:    executor.ProgressFunc(func(int, int, string, string) {}),
		timeouts:    executor.DefaultTimeouts(),
		settleDelay: 3 * time.Second,
		settleTick:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.L()
	}
	return o
}

// RequestStop asks the running batch to stop at its next checkpoint. Idempotent.
func (o *Orchestrator) RequestStop() {
	if o.stopRequested.CompareAndSwap(false, true) {
		o.log.Infow("🛑 stop requested", "batch", o.currentBatch())
	}
}

func (o *Orchestrator) StopRequested() bool {
	return o.stopRequested.Load()
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		Running:        o.running.Load(),
		LoginPerformed: o.loginPerformed.Load(),
		StopRequested:  o.stopRequested.Load(),
	}
	if st.Running {
		st.BatchID = o.batchID
	}
	if o.last != nil {
		last := *o.last
		st.Last = &last
	}
	return st
}

// RunBatch runs scenarios in ascending number order and blocks until done.
// It returns ErrBatchRunning if another batch is in flight.
func (o *Orchestrator) RunBatch(ctx context.Context, scenarios []models.Scenario) (Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Summary{}, ErrBatchRunning
	}
	defer o.finish()
	return o.run(ctx, o.begin(), scenarios)
}

// Start runs the batch on a background goroutine and returns its id.
// The batch outlives ctx cancellation; use RequestStop to end it early.
func (o *Orchestrator) Start(ctx context.Context, scenarios []models.Scenario) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrBatchRunning
	}
	id := o.begin()
	bg := context.WithoutCancel(ctx)
	go func() {
		defer o.finish()
		if _, err := o.run(bg, id, scenarios); err != nil {
			o.log.Errorw("❌ batch failed", "batch", id, "error", err)
		}
	}()
	return id, nil
}

// RunScenario runs a single scenario as a batch of one and reports whether it passed.
func (o *Orchestrator) RunScenario(ctx context.Context, sc models.Scenario) (bool, error) {
	summary, err := o.RunBatch(ctx, []models.Scenario{sc})
	if err != nil {
		return false, err
	}
	return summary.Succeeded == 1, nil
}

func (o *Orchestrator) begin() string {
	o.stopRequested.Store(false)
	o.loginPerformed.Store(false)
	id := uuid.NewString()
	o.mu.Lock()
	o.batchID = id
	o.mu.Unlock()
	metrics.SetBatchRunning(true)
	return id
}

func (o *Orchestrator) finish() {
	metrics.SetBatchRunning(false)
	o.running.Store(false)
}

func (o *Orchestrator) currentBatch() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batchID
}

func (o *Orchestrator) run(ctx context.Context, batchID string, scenarios []models.Scenario) (Summary, error) {
	ordered := make([]models.Scenario, len(scenarios))
	copy(ordered, scenarios)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	total := len(ordered)
	summary := Summary{BatchID: batchID, Total: total, StartedAt: time.Now()}
	log := o.log.With("batch", batchID)
	log.Infof("🚀 starting batch with %d scenarios", total)

	browser, err := o.sessions.CreateSession(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		o.record(summary)
		o.progress.OnProgress(0, total, "", "❌ could not start browser session: "+err.Error())
		return summary, fmt.Errorf("create session: %w", err)
	}
	defer func() {
		if err := o.sessions.DestroySession(browser); err != nil {
			log.Warnw("⚠️ failed to destroy session", "error", err)
		}
	}()

	interp := executor.NewInterpreter(browser,
		executor.WithTimeouts(o.timeouts),
		executor.WithSnapshotStore(o.snapshots),
		executor.WithProgress(o.progress),
		executor.WithBaseURL(o.baseURL),
		executor.WithLogger(o.log),
	)
	runner := executor.NewRunner(interp, o.sink,
		executor.WithStopSignal(o),
		executor.WithRunnerLogger(o.log),
	)

	for i := range ordered {
		sc := &ordered[i]
		if o.stopRequested.Load() || ctx.Err() != nil {
			summary.Stopped = true
			log.Warnf("🛑 batch stopped before scenario #%d", sc.Number)
			break
		}

		o.progress.OnProgress(i+1, total, scenarioLabel(sc), fmt.Sprintf("▶️ running scenario %d/%d (#%d)", i+1, total, sc.Number))
		if o.runOne(ctx, runner, sc) {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		if i == total-1 {
			break
		}
		if o.stopRequested.Load() {
			summary.Stopped = true
			log.Warnf("🛑 batch stopped after scenario #%d", sc.Number)
			break
		}
		if !o.settle(ctx, i+1, total) {
			summary.Stopped = true
			log.Warnf("🛑 batch stopped while settling after scenario #%d", sc.Number)
			break
		}
	}

	summary.FinishedAt = time.Now()
	o.record(summary)
	log.Infof("🏁 batch finished: %d succeeded, %d failed, %d total", summary.Succeeded, summary.Failed, summary.Total)
	o.progress.OnProgress(total, total, "", fmt.Sprintf("🏁 batch finished: %d succeeded, %d failed, %d total",
		summary.Succeeded, summary.Failed, summary.Total))
	if o.observer != nil {
		o.observer.NotifyChanged()
	}
	return summary, nil
}

// runOne applies the login policy and runs one scenario. It never panics.
func (o *Orchestrator) runOne(ctx context.Context, runner *executor.Runner, sc *models.Scenario) (passed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			o.log.Errorf("🚨 PANIC recovered while running scenario #%d: %v", sc.Number, rec)
			o.persistFailed(ctx, sc)
			passed = false
		}
	}()

	records, err := o.source.ScenarioSteps(ctx, sc.ID)
	if err != nil {
		o.log.Errorf("❌ failed to load steps for scenario #%d: %v", sc.Number, err)
		o.persistFailed(ctx, sc)
		return false
	}

	if o.loginPerformed.Load() {
		filtered := FilterLoginSteps(records)
		if dropped := len(records) - len(filtered); dropped > 0 {
			o.log.Infof("🔐 skipping %d login steps in scenario #%d, already logged in", dropped, sc.Number)
		}
		records = filtered
	} else if ContainsLoginSteps(records) {
		o.loginPerformed.Store(true)
		o.log.Infof("🔐 scenario #%d performs the batch login", sc.Number)
	}

	return runner.Run(ctx, sc, models.NewSteps(records))
}

func (o *Orchestrator) persistFailed(ctx context.Context, sc *models.Scenario) {
	now := time.Now()
	sc.Result = models.ResultFailed
	sc.ExecutedAt = &now
	metrics.RecordScenario(string(models.ResultFailed))
	if o.sink == nil {
		return
	}
	if err := o.sink.UpdateScenarioResult(context.WithoutCancel(ctx), sc.ID, models.ResultFailed, now); err != nil {
		o.log.Errorf("❌ failed to persist result for scenario #%d: %v", sc.Number, err)
	}
}

// settle waits out the inter-scenario delay, checking for a stop on every tick.
// It returns false when the batch should stop.
func (o *Orchestrator) settle(ctx context.Context, done, total int) bool {
	if o.settleDelay <= 0 {
		return !o.stopRequested.Load()
	}
	o.progress.OnProgress(done, total, "", fmt.Sprintf("⏳ waiting %s before next scenario", o.settleDelay))

	timer := time.NewTimer(o.settleDelay)
	defer timer.Stop()
	ticker := time.NewTicker(o.settleTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return !o.stopRequested.Load()
		case <-ticker.C:
			if o.stopRequested.Load() {
				return false
			}
		}
	}
}

func (o *Orchestrator) record(s Summary) {
	o.mu.Lock()
	o.last = &s
	o.mu.Unlock()
}

func scenarioLabel(sc *models.Scenario) string {
	if sc.Description != "" {
		return fmt.Sprintf("#%d %s", sc.Number, sc.Description)
	}
	return fmt.Sprintf("#%d", sc.Number)
}
