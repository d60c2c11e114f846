package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/fakebrowser"
	"stepflow/internal/locator"
	"stepflow/internal/models"
)

type progressEvent struct {
	index, total int
	name, msg    string
}

type progressRecorder struct {
	events []progressEvent
}

func (p *progressRecorder) OnProgress(i, total int, name, msg string) {
	p.events = append(p.events, progressEvent{i, total, name, msg})
}

func fastTimeouts() Timeouts {
	return Timeouts{
		Locator:    locator.Timeouts{Primary: time.Millisecond, Fallback: time.Millisecond, LastFallback: time.Millisecond},
		Navigation: time.Second,
	}
}

func newStep(order int, typ models.StepType, name, target, value string) *models.Step {
	return &models.Step{
		StepRecord: models.StepRecord{Order: order, Name: name, Type: typ, Target: target, Value: value},
		Status:     models.StepPending,
	}
}

func TestExecuteNavigateResolvesBaseURL(t *testing.T) {
	b := fakebrowser.New()
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()), WithBaseURL("https://app.test/"))
	step := newStep(1, models.StepNavigate, "Open login", "/login", "")

	require.NoError(t, in.Execute(context.Background(), nil, step, 1, 1))
	assert.Equal(t, models.StepCompleted, step.Status)
	nav := b.ActionsOf("navigate")
	require.Len(t, nav, 1)
	assert.Equal(t, "https://app.test/login", nav[0].Value)
	assert.NotNil(t, step.Before)
	assert.NotNil(t, step.After)
	assert.Equal(t, models.SnapshotBefore, step.Before.Side)
	assert.Equal(t, 1, step.After.StepOrder)
}

func TestExecuteNavigateTimeout(t *testing.T) {
	b := fakebrowser.New()
	b.NavigateErr = fmt.Errorf("load: %w", context.DeadlineExceeded)
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepNavigate, "Open", "https://app.test", "")

	err := in.Execute(context.Background(), nil, step, 1, 1)
	assert.ErrorIs(t, err, ErrNavigationTimeout)
	assert.Equal(t, models.StepFailed, step.Status)
	assert.NotNil(t, step.After, "after snapshot is taken even on failure")
}

func TestExecuteClickVariant(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("row1"), "row")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(2, models.StepElementClick, "Open menu", "#row1 [RIGHT-CLICK]", "")

	require.NoError(t, in.Execute(context.Background(), nil, step, 1, 1))
	clicks := b.ActionsOf("click")
	require.Len(t, clicks, 1)
	assert.Equal(t, "row", clicks[0].Element)
	assert.Equal(t, locator.ClickRight, clicks[0].Variant)
}

func TestExecuteTextInput(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("email"), "email")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepTextInput, "Type email", "#email", "qa@example.com")

	require.NoError(t, in.Execute(context.Background(), nil, step, 1, 1))
	fills := b.ActionsOf("fill")
	require.Len(t, fills, 1)
	assert.Equal(t, "qa@example.com", fills[0].Value)
}

func TestExecuteTextInputRequiresValue(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("otp"), "otp")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepTextInput, "Enter code", "#otp", "")
	step.RequiresUserInput = true

	err := in.Execute(context.Background(), nil, step, 1, 1)
	assert.ErrorIs(t, err, ErrActionExecution)
	assert.Empty(t, b.ActionsOf("fill"))
}

func TestExecuteElementNotFound(t *testing.T) {
	b := fakebrowser.New()
	progress := &progressRecorder{}
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()), WithProgress(progress))
	step := newStep(3, models.StepElementClick, "Press save", "#save [DOUBLE-CLICK]", "")

	err := in.Execute(context.Background(), nil, step, 3, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.ErrorIs(t, err, locator.ErrNotFound)
	assert.Contains(t, err.Error(), "Press save")
	assert.Contains(t, err.Error(), "#save [DOUBLE-CLICK]")
	assert.Contains(t, err.Error(), "the page may have changed")
	assert.Equal(t, models.StepFailed, step.Status)
	assert.Equal(t, err.Error(), step.Error)

	require.Len(t, progress.events, 1)
	assert.Equal(t, 3, progress.events[0].index)
	assert.Equal(t, 5, progress.events[0].total)
	assert.Equal(t, "Press save", progress.events[0].name)
}

func TestExecuteWaitForms(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("btn"), "btn").With(locator.ID("spinner"), "spinner")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	ctx := context.Background()

	require.NoError(t, in.Execute(ctx, nil, newStep(1, models.StepWait, "Pause", "", "0.01"), 1, 4))
	assert.Empty(t, b.ActionsOf("wait-visible"))

	require.NoError(t, in.Execute(ctx, nil, newStep(2, models.StepWait, "Load", "", "pageload"), 2, 4))
	assert.Len(t, b.ActionsOf("page-load"), 1)

	require.NoError(t, in.Execute(ctx, nil, newStep(3, models.StepWait, "Ready", "", "clickable:#btn"), 3, 4))
	require.Len(t, b.ActionsOf("wait-clickable"), 1)
	assert.Equal(t, "btn", b.ActionsOf("wait-clickable")[0].Element)

	require.NoError(t, in.Execute(ctx, nil, newStep(4, models.StepWait, "Spinner", "#spinner", ""), 4, 4))
	require.Len(t, b.ActionsOf("wait-visible"), 1)
	assert.Equal(t, "spinner", b.ActionsOf("wait-visible")[0].Element)
}

func TestExecuteWaitRejectsDurationsBeyondRange(t *testing.T) {
	in := NewInterpreter(fakebrowser.New(), WithTimeouts(fastTimeouts()))
	for _, value := range []string{"1e10", "1e300", "9223372037"} {
		step := newStep(1, models.StepWait, "Forever", "", value)
		start := time.Now()
		err := in.Execute(context.Background(), nil, step, 1, 1)
		assert.ErrorIs(t, err, ErrActionExecution, value)
		assert.Equal(t, models.StepFailed, step.Status, value)
		assert.Less(t, time.Since(start), time.Second, value)
	}
}

func TestExecuteWaitPrefixIgnoresCase(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("btn"), "btn").With(locator.ID("spinner"), "spinner")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	ctx := context.Background()

	require.NoError(t, in.Execute(ctx, nil, newStep(1, models.StepWait, "Ready", "", "CLICKABLE:#btn"), 1, 3))
	require.Len(t, b.ActionsOf("wait-clickable"), 1)
	assert.Equal(t, "btn", b.ActionsOf("wait-clickable")[0].Element)

	require.NoError(t, in.Execute(ctx, nil, newStep(2, models.StepWait, "Shown", "", "Visible: #spinner"), 2, 3))
	require.Len(t, b.ActionsOf("wait-visible"), 1)
	assert.Equal(t, "spinner", b.ActionsOf("wait-visible")[0].Element)

	// KELVIN SIGN lowercases to a one-byte 'k'; the prefix must not be cut by byte offset
	empty := fakebrowser.New()
	in = NewInterpreter(empty, WithTimeouts(fastTimeouts()))
	assert.NotPanics(t, func() {
		err := in.Execute(ctx, nil, newStep(3, models.StepWait, "Kelvin", "", "clic\u212Aable:#btn"), 3, 3)
		assert.Error(t, err)
	})
	assert.Empty(t, empty.ActionsOf("wait-clickable"))
}

func TestExecuteWaitWithoutTarget(t *testing.T) {
	in := NewInterpreter(fakebrowser.New(), WithTimeouts(fastTimeouts()))
	err := in.Execute(context.Background(), nil, newStep(1, models.StepWait, "Nothing", "", ""), 1, 1)
	assert.ErrorIs(t, err, ErrActionExecution)
}

func TestExecuteWaitHonoursCancellation(t *testing.T) {
	in := NewInterpreter(fakebrowser.New(), WithTimeouts(fastTimeouts()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := in.Execute(ctx, nil, newStep(1, models.StepWait, "Long", "", "30"), 1, 1)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteScreenshotStep(t *testing.T) {
	b := fakebrowser.New()
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepScreenshot, "Capture", "", "")

	require.NoError(t, in.Execute(context.Background(), nil, step, 1, 1))
	assert.Len(t, b.ActionsOf("screenshot"), 1)
	assert.Nil(t, step.Before)
	assert.NotNil(t, step.After)
}

func TestExecuteScreenshotFailureFailsStep(t *testing.T) {
	b := fakebrowser.New()
	b.ScreenshotErr = fmt.Errorf("target closed")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepScreenshot, "Capture", "", "")

	assert.ErrorIs(t, in.Execute(context.Background(), nil, step, 1, 1), ErrActionExecution)
	assert.Equal(t, models.StepFailed, step.Status)
}

func TestExecuteSnapshotFailureDoesNotFailAction(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("ok"), "ok")
	b.ScreenshotErr = fmt.Errorf("target closed")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()))
	step := newStep(1, models.StepElementClick, "Click", "#ok", "")

	require.NoError(t, in.Execute(context.Background(), nil, step, 1, 1))
	assert.Equal(t, models.StepCompleted, step.Status)
	assert.Nil(t, step.After)
}

func TestExecuteUnsupportedType(t *testing.T) {
	in := NewInterpreter(fakebrowser.New(), WithTimeouts(fastTimeouts()))
	err := in.Execute(context.Background(), nil, newStep(1, models.StepType("Hover"), "Hover", "#x", ""), 1, 1)
	assert.ErrorIs(t, err, ErrActionExecution)
	assert.Contains(t, err.Error(), "unsupported step type")
}

func TestExecuteWritesSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	b := fakebrowser.New().With(locator.ID("go"), "go")
	in := NewInterpreter(b, WithTimeouts(fastTimeouts()), WithSnapshotStore(&FileSnapshotStore{Dir: dir}))
	run := &StepRun{Scenario: "scenario 7", Snapshots: NewSnapshotSet()}
	step := newStep(4, models.StepElementClick, "Go", "#go", "")

	require.NoError(t, in.Execute(context.Background(), run, step, 1, 1))
	require.NotNil(t, step.Before)
	require.NotNil(t, step.After)

	for _, snap := range []*models.Snapshot{step.Before, step.After} {
		data, err := os.ReadFile(filepath.Join(dir, snap.Path))
		require.NoError(t, err)
		assert.Equal(t, snap.Size, len(data))
		assert.Contains(t, filepath.Base(snap.Path), "scenario_7_4_")
	}
	assert.Len(t, run.Snapshots.All(), 2)
}

func TestSnapshotSetWriteOnce(t *testing.T) {
	set := NewSnapshotSet()
	assert.True(t, set.Record(&models.Snapshot{StepOrder: 1, Side: models.SnapshotAfter}))
	assert.False(t, set.Record(&models.Snapshot{StepOrder: 1, Side: models.SnapshotAfter}))
	assert.True(t, set.Record(&models.Snapshot{StepOrder: 1, Side: models.SnapshotBefore}))

	all := set.All()
	require.Len(t, all, 2)
	assert.Equal(t, models.SnapshotBefore, all[0].Side)
}

func TestStepErrorMessageFramesUIChange(t *testing.T) {
	err := &StepError{Kind: ErrActionExecution, StepName: "Save", Target: "#save", Err: fmt.Errorf("node detached")}
	assert.Contains(t, err.Error(), `"Save"`)
	assert.Contains(t, err.Error(), `"#save"`)
	assert.Contains(t, err.Error(), "node detached")
	assert.Contains(t, err.Error(), "the page may have changed")
}
