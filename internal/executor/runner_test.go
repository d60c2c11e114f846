package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/fakebrowser"
	"stepflow/internal/locator"
	"stepflow/internal/models"
)

type resultCall struct {
	id         uint
	result     models.ScenarioResult
	executedAt time.Time
	ctxErr     error
}

type recordingSink struct {
	calls []resultCall
	err   error
}

func (s *recordingSink) UpdateScenarioResult(ctx context.Context, id uint, result models.ScenarioResult, at time.Time) error {
	s.calls = append(s.calls, resultCall{id, result, at, ctx.Err()})
	return s.err
}

func newScenario(id uint, number int) *models.Scenario {
	s := &models.Scenario{Number: number, Result: models.ResultNotRun}
	s.ID = id
	return s
}

func newRunner(b *fakebrowser.Browser, sink ResultSink, opts ...RunnerOption) *Runner {
	return NewRunner(NewInterpreter(b, WithTimeouts(fastTimeouts())), sink, opts...)
}

func TestRunAllStepsPass(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("user"), "user").With(locator.ID("go"), "go")
	sink := &recordingSink{}
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newRunner(b, sink, WithClock(func() time.Time { return fixed }))
	sc := newScenario(11, 1)

	passed := r.Run(context.Background(), sc, []*models.Step{
		newStep(1, models.StepNavigate, "Open", "https://app.test", ""),
		newStep(2, models.StepTextInput, "User", "#user", "qa"),
		newStep(3, models.StepElementClick, "Go", "#go", ""),
	})

	assert.True(t, passed)
	assert.Equal(t, models.ResultPassed, sc.Result)
	require.NotNil(t, sc.ExecutedAt)
	assert.Equal(t, fixed, *sc.ExecutedAt)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, resultCall{id: 11, result: models.ResultPassed, executedAt: fixed}, sink.calls[0])
}

func TestRunEmptyScenarioPasses(t *testing.T) {
	sink := &recordingSink{}
	assert.True(t, newRunner(fakebrowser.New(), sink).Run(context.Background(), newScenario(1, 1), nil))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, models.ResultPassed, sink.calls[0].result)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	b := fakebrowser.New().With(locator.ID("last"), "last")
	sink := &recordingSink{}
	steps := []*models.Step{
		newStep(1, models.StepElementClick, "Missing", "#missing", ""),
		newStep(2, models.StepElementClick, "Last", "#last", ""),
	}

	passed := newRunner(b, sink).Run(context.Background(), newScenario(2, 2), steps)

	assert.False(t, passed)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Equal(t, models.StepPending, steps[1].Status)
	assert.Empty(t, b.ActionsOf("click"))
	require.Len(t, sink.calls, 1)
	assert.Equal(t, models.ResultFailed, sink.calls[0].result)
}

func TestRunExecutesInOrder(t *testing.T) {
	b := fakebrowser.New()
	steps := []*models.Step{
		newStep(3, models.StepNavigate, "Third", "https://app.test/3", ""),
		newStep(1, models.StepNavigate, "First", "https://app.test/1", ""),
		newStep(2, models.StepNavigate, "Second", "https://app.test/2", ""),
	}

	require.True(t, newRunner(b, nil).Run(context.Background(), newScenario(3, 3), steps))
	var urls []string
	for _, a := range b.ActionsOf("navigate") {
		urls = append(urls, a.Value)
	}
	assert.Equal(t, []string{"https://app.test/1", "https://app.test/2", "https://app.test/3"}, urls)
}

func TestRunHonoursStopBetweenSteps(t *testing.T) {
	var stop atomic.Bool
	b := fakebrowser.New()
	b.OnAction = func(a fakebrowser.Action) {
		if a.Kind == "navigate" {
			stop.Store(true)
		}
	}
	sink := &recordingSink{}
	steps := []*models.Step{
		newStep(1, models.StepNavigate, "Open", "https://app.test", ""),
		newStep(2, models.StepNavigate, "Next", "https://app.test/next", ""),
	}

	passed := newRunner(b, sink, WithStopSignal(StopFunc(stop.Load))).Run(context.Background(), newScenario(4, 4), steps)

	assert.False(t, passed)
	assert.Equal(t, models.StepCompleted, steps[0].Status, "current step finishes")
	assert.Equal(t, models.StepPending, steps[1].Status)
	assert.Len(t, b.ActionsOf("navigate"), 1)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, models.ResultFailed, sink.calls[0].result)
}

func TestRunRecoversPanics(t *testing.T) {
	b := fakebrowser.New()
	b.OnAction = func(a fakebrowser.Action) {
		if a.Kind == "navigate" {
			panic("driver exploded")
		}
	}
	sink := &recordingSink{}
	steps := []*models.Step{newStep(1, models.StepNavigate, "Open", "https://app.test", "")}

	var passed bool
	require.NotPanics(t, func() {
		passed = newRunner(b, sink).Run(context.Background(), newScenario(5, 5), steps)
	})
	assert.False(t, passed)
	assert.Equal(t, models.StepFailed, steps[0].Status)
	assert.Contains(t, steps[0].Error, "driver exploded")
	require.Len(t, sink.calls, 1)
	assert.Equal(t, models.ResultFailed, sink.calls[0].result)
}

func TestRunPersistsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	steps := []*models.Step{newStep(1, models.StepNavigate, "Open", "https://app.test", "")}

	assert.False(t, newRunner(fakebrowser.New(), sink).Run(ctx, newScenario(6, 6), steps))
	require.Len(t, sink.calls, 1)
	assert.NoError(t, sink.calls[0].ctxErr, "persistence runs on a live context")
	assert.Equal(t, models.ResultFailed, sink.calls[0].result)
}

func TestRunSinkErrorDoesNotChangeVerdict(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	sc := newScenario(7, 7)
	assert.True(t, newRunner(fakebrowser.New(), sink).Run(context.Background(), sc, nil))
	assert.Equal(t, models.ResultPassed, sc.Result)
}
