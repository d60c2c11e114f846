package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"stepflow/internal/locator"
	"stepflow/internal/models"
	"stepflow/pkg/logger"
	"stepflow/pkg/metrics"
)

// Interpreter executes one step at a time against a browser session.
type Interpreter struct {
	browser   Browser
	resolver  *locator.Resolver
	snapshots SnapshotStore
	progress  ProgressSink
	timeouts  Timeouts
	baseURL   string
	log       *zap.SugaredLogger
}

type Option func(*Interpreter)

func WithSnapshotStore(s SnapshotStore) Option {
	return func(in *Interpreter) { in.snapshots = s }
}

func WithProgress(p ProgressSink) Option {
	return func(in *Interpreter) {
		if p != nil {
			in.progress = p
		}
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(in *Interpreter) { in.timeouts = t }
}

// WithBaseURL makes relative Navigate targets resolve against base.
func WithBaseURL(base string) Option {
	return func(in *Interpreter) { in.baseURL = base }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(in *Interpreter) { in.log = l }
}

func NewInterpreter(b Browser, opts ...Option) *Interpreter {
	in := &Interpreter{
		browser:  b,
		progress: nopProgress{},
		timeouts: DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = logger.L()
	}
	in.resolver = locator.NewResolver(b,
		locator.WithTimeouts(in.timeouts.Locator),
		locator.WithLogger(in.log),
	)
	return in
}

// StepRun carries the per-run state shared by the steps of one scenario.
type StepRun struct {
	Scenario  string
	Snapshots *SnapshotSet
}

// Execute runs step, updates its status and snapshots, and reports progress.
// index is 1-based. The returned error is the one recorded on the step.
func (in *Interpreter) Execute(ctx context.Context, run *StepRun, step *models.Step, index, total int) error {
	if run == nil {
		run = &StepRun{}
	}
	if run.Snapshots == nil {
		run.Snapshots = NewSnapshotSet()
	}

	start := time.Now()
	in.log.Infof("🔄 step %d/%d %s (%s) target=%q", index, total, step.Name, step.Type, step.Target)

	if takesBeforeSnapshot(step.Type) {
		if _, err := in.capture(ctx, run, step, models.SnapshotBefore); err != nil {
			in.log.Warnw("⚠️ before snapshot failed", "step", step.Name, "error", err)
		}
	}

	var err error
	if step.Type == models.StepScreenshot {
		if _, cerr := in.capture(ctx, run, step, models.SnapshotAfter); cerr != nil {
			err = stepErr(ErrActionExecution, step.Name, "", cerr)
		}
	} else {
		err = in.perform(ctx, step)
		if _, cerr := in.capture(ctx, run, step, models.SnapshotAfter); cerr != nil {
			in.log.Warnw("⚠️ after snapshot failed", "step", step.Name, "error", cerr)
		}
	}

	elapsed := time.Since(start).Milliseconds()
	var message string
	if err != nil {
		step.Status = models.StepFailed
		step.Error = err.Error()
		message = "❌ " + err.Error()
		in.log.Errorf("❌ step %d/%d failed (%dms): %s - %v", index, total, elapsed, step.Name, err)
	} else {
		step.Status = models.StepCompleted
		step.Error = ""
		message = "✅ step completed"
		in.log.Infof("✅ step %d/%d completed (%dms): %s", index, total, elapsed, step.Name)
	}
	metrics.RecordStep(string(step.Type), string(step.Status))
	in.progress.OnProgress(index, total, step.Name, message)

	if err == nil && in.timeouts.StepDelay > 0 {
		_ = sleep(ctx, in.timeouts.StepDelay)
	}
	return err
}

func takesBeforeSnapshot(t models.StepType) bool {
	switch t {
	case models.StepNavigate, models.StepElementClick, models.StepTextInput:
		return true
	}
	return false
}

func (in *Interpreter) perform(ctx context.Context, step *models.Step) error {
	switch step.Type {
	case models.StepNavigate:
		return in.navigate(ctx, step)
	case models.StepElementClick:
		return in.click(ctx, step)
	case models.StepTextInput:
		return in.input(ctx, step)
	case models.StepWait:
		return in.wait(ctx, step)
	default:
		return stepErr(ErrActionExecution, step.Name, step.Target, fmt.Errorf("unsupported step type: %s", step.Type))
	}
}

func (in *Interpreter) navigate(ctx context.Context, step *models.Step) error {
	target, err := in.resolveURL(step.Target)
	if err != nil {
		return stepErr(ErrActionExecution, step.Name, step.Target, err)
	}
	if err := in.browser.Navigate(ctx, target, in.timeouts.Navigation); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stepErr(ErrNavigationTimeout, step.Name, step.Target, err)
		}
		return stepErr(ErrActionExecution, step.Name, step.Target, err)
	}
	return nil
}

func (in *Interpreter) resolveURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("navigate target is empty")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.IsAbs() || in.baseURL == "" {
		return target, nil
	}
	base, err := url.Parse(in.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", in.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

func (in *Interpreter) resolve(ctx context.Context, step *models.Step, target string) (*locator.Resolution, error) {
	res, err := in.resolver.Resolve(ctx, target, in.timeouts.Locator.Primary)
	if err != nil {
		if errors.Is(err, locator.ErrNotFound) {
			return nil, stepErr(ErrElementNotFound, step.Name, target, err)
		}
		return nil, stepErr(ErrActionExecution, step.Name, target, err)
	}
	in.log.Debugw("🔍 element resolved", "target", target, "strategy", res.Strategy, "attempts", res.Attempts)
	return res, nil
}

func (in *Interpreter) click(ctx context.Context, step *models.Step) error {
	res, err := in.resolve(ctx, step, step.Target)
	if err != nil {
		return err
	}
	if err := in.browser.Click(ctx, res.Handle, res.Target.Variant); err != nil {
		return stepErr(ErrActionExecution, step.Name, step.Target, err)
	}
	return nil
}

func (in *Interpreter) input(ctx context.Context, step *models.Step) error {
	if step.RequiresUserInput && step.Value == "" {
		return stepErr(ErrActionExecution, step.Name, step.Target, errors.New("a value is required for this step but none was provided"))
	}
	res, err := in.resolve(ctx, step, step.Target)
	if err != nil {
		return err
	}
	if err := in.browser.Fill(ctx, res.Handle, step.Value); err != nil {
		return stepErr(ErrActionExecution, step.Name, step.Target, err)
	}
	return nil
}

// wait interprets the value as seconds, "pageload", "clickable:<target>",
// "visible:<target>" or a bare target. An empty value waits on the step target.
// maxWaitSeconds is the longest numeric wait that still fits a time.Duration.
const maxWaitSeconds = float64(math.MaxInt64 / int64(time.Second))

// cutPrefixFold is strings.CutPrefix with an ASCII prefix matched case-insensitively.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func (in *Interpreter) wait(ctx context.Context, step *models.Step) error {
	value := strings.TrimSpace(step.Value)

	if secs, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		if secs < 0 {
			return stepErr(ErrActionExecution, step.Name, "", fmt.Errorf("negative wait duration %q", value))
		}
		if secs > maxWaitSeconds {
			return stepErr(ErrActionExecution, step.Name, "", fmt.Errorf("wait duration %q exceeds %.0fs", value, maxWaitSeconds))
		}
		if err := sleep(ctx, time.Duration(secs*float64(time.Second))); err != nil {
			return stepErr(ErrActionExecution, step.Name, "", err)
		}
		return nil
	}

	if strings.EqualFold(value, "pageload") || strings.EqualFold(value, "page-load") {
		if err := in.browser.WaitPageLoad(ctx, in.timeouts.Navigation); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return stepErr(ErrNavigationTimeout, step.Name, "", err)
			}
			return stepErr(ErrActionExecution, step.Name, "", err)
		}
		return nil
	}

	clickable := false
	target := value
	if rest, ok := cutPrefixFold(value, "clickable:"); ok {
		clickable = true
		target = strings.TrimSpace(rest)
	} else if rest, ok := cutPrefixFold(value, "visible:"); ok {
		target = strings.TrimSpace(rest)
	}
	if target == "" {
		target = step.Target
	}
	if target == "" {
		return stepErr(ErrActionExecution, step.Name, "", errors.New("wait has neither a duration nor a target"))
	}

	res, err := in.resolve(ctx, step, target)
	if err != nil {
		return err
	}
	if clickable {
		err = in.browser.WaitClickable(ctx, res.Handle, in.timeouts.Locator.Primary)
	} else {
		err = in.browser.WaitVisible(ctx, res.Handle, in.timeouts.Locator.Primary)
	}
	if err != nil {
		return stepErr(ErrActionExecution, step.Name, target, err)
	}
	return nil
}

func (in *Interpreter) capture(ctx context.Context, run *StepRun, step *models.Step, side models.SnapshotSide) (*models.Snapshot, error) {
	if run.Snapshots.Has(step.Order, side) {
		return nil, nil
	}
	data, err := in.browser.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture %s snapshot: %w", side, err)
	}

	snap := &models.Snapshot{
		StepOrder:  step.Order,
		Side:       side,
		CapturedAt: time.Now(),
		Size:       len(data),
	}
	if in.snapshots != nil {
		path, err := in.snapshots.Save(ctx, SnapshotMeta{
			Scenario:   run.Scenario,
			StepOrder:  step.Order,
			Side:       side,
			CapturedAt: snap.CapturedAt,
		}, data)
		if err != nil {
			return nil, err
		}
		snap.Path = path
		in.log.Debugf("📸 snapshot saved: %s (step %d, %s)", path, step.Order, side)
	}

	if !run.Snapshots.Record(snap) {
		return nil, nil
	}
	if side == models.SnapshotBefore {
		step.Before = snap
	} else {
		step.After = snap
	}
	return snap, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
