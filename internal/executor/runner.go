package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"stepflow/internal/models"
	"stepflow/pkg/logger"
	"stepflow/pkg/metrics"
)

// ResultSink persists the verdict of a finished scenario run.
type ResultSink interface {
	UpdateScenarioResult(ctx context.Context, scenarioID uint, result models.ScenarioResult, executedAt time.Time) error
}

// StopSignal is polled between steps.
type StopSignal interface {
	StopRequested() bool
}

type StopFunc func() bool

func (f StopFunc) StopRequested() bool { return f() }

type Runner struct {
	interp *Interpreter
	sink   ResultSink
	stop   StopSignal
	now    func() time.Time
	log    *zap.SugaredLogger
}

type RunnerOption func(*Runner)

func WithStopSignal(s StopSignal) RunnerOption {
	return func(r *Runner) { r.stop = s }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func WithRunnerLogger(l *zap.SugaredLogger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

func NewRunner(interp *Interpreter, sink ResultSink, opts ...RunnerOption) *Runner {
	r := &Runner{interp: interp, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.L()
	}
	return r
}

// Run executes steps in order and returns true when every step completed.
// The first failed step ends the run and later steps stay Pending. The
// verdict is always written to scenario and to the sink, panics included.
func (r *Runner) Run(ctx context.Context, scenario *models.Scenario, steps []*models.Step) (passed bool) {
	ordered := make([]*models.Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	for _, s := range ordered {
		s.Status, s.Error, s.Before, s.After = models.StepPending, "", nil, nil
	}

	label := fmt.Sprintf("scenario_%d", scenario.Number)
	run := &StepRun{Scenario: label, Snapshots: NewSnapshotSet()}
	total := len(ordered)
	r.log.Infof("🏁 starting scenario #%d %q (%d steps)", scenario.Number, scenario.Description, total)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("🚨 PANIC recovered in scenario #%d: %v", scenario.Number, rec)
			passed = false
		}
		r.persist(ctx, scenario, passed)
	}()

	for i, step := range ordered {
		if r.stop != nil && r.stop.StopRequested() {
			r.log.Warnf("⚠️ stop requested, scenario #%d halted before step %d/%d", scenario.Number, i+1, total)
			break
		}
		if err := ctx.Err(); err != nil {
			r.log.Warnf("⚠️ scenario #%d cancelled before step %d/%d: %v", scenario.Number, i+1, total, err)
			break
		}
		if err := r.execStep(ctx, run, step, i+1, total); err != nil {
			break
		}
	}

	return allCompleted(ordered)
}

func (r *Runner) execStep(ctx context.Context, run *StepRun, step *models.Step, index, total int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = stepErr(ErrScenarioInternal, step.Name, step.Target, fmt.Errorf("panic: %v", rec))
			step.Status = models.StepFailed
			step.Error = err.Error()
			r.log.Errorf("🚨 PANIC recovered in step %d/%d %s: %v", index, total, step.Name, rec)
		}
	}()
	return r.interp.Execute(ctx, run, step, index, total)
}

func (r *Runner) persist(ctx context.Context, scenario *models.Scenario, passed bool) {
	result := models.ResultFailed
	if passed {
		result = models.ResultPassed
	}
	executedAt := r.now()
	scenario.Result = result
	scenario.ExecutedAt = &executedAt
	metrics.RecordScenario(string(result))

	if r.sink == nil {
		return
	}
	// the verdict must land even when the run was cancelled
	if err := r.sink.UpdateScenarioResult(context.WithoutCancel(ctx), scenario.ID, result, executedAt); err != nil {
		r.log.Errorf("❌ failed to persist result for scenario #%d: %v", scenario.Number, err)
		return
	}
	r.log.Infof("🎉 scenario #%d finished: %s", scenario.Number, result)
}

func allCompleted(steps []*models.Step) bool {
	for _, s := range steps {
		if s.Status != models.StepCompleted {
			return false
		}
	}
	return true
}
