package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenarioStepRecordValuePriority(t *testing.T) {
	tmpl := StepTemplate{Name: "Type email", Type: StepTextInput, Target: "#email", Value: "default@example.com"}

	tests := []struct {
		name string
		step ScenarioStep
		want string
	}{
		{"scenario value wins", ScenarioStep{Template: tmpl, ScenarioValue: "a@b.c", CustomValue: "custom"}, "a@b.c"},
		{"custom value next", ScenarioStep{Template: tmpl, CustomValue: "custom"}, "custom"},
		{"template value last", ScenarioStep{Template: tmpl}, "default@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.Record().Value)
		})
	}
}

func TestScenarioStepRecordCustomValueIgnoredForClick(t *testing.T) {
	step := ScenarioStep{
		Order:       3,
		Template:    StepTemplate{Name: "Press save", Type: StepElementClick, Target: "#save"},
		CustomValue: "ignored",
	}
	rec := step.Record()
	assert.Empty(t, rec.Value)
	assert.Equal(t, 3, rec.Order)
	assert.Equal(t, "#save", rec.Target)
	assert.Equal(t, "Press save", rec.Name)
}

func TestScenarioStepRecordTargetOverride(t *testing.T) {
	step := ScenarioStep{
		Template:            StepTemplate{Name: "Open", Type: StepNavigate, Target: "/login", Description: "template"},
		ScenarioTarget:      "/signin",
		ScenarioDescription: "scenario",
	}
	rec := step.Record()
	assert.Equal(t, "/signin", rec.Target)
	assert.Equal(t, "scenario", rec.Description)
}

func TestNewStepsStartPending(t *testing.T) {
	steps := NewSteps([]StepRecord{{Order: 1, Type: StepWait}, {Order: 2, Type: StepScreenshot}})
	assert.Len(t, steps, 2)
	for _, s := range steps {
		assert.Equal(t, StepPending, s.Status)
		assert.Nil(t, s.Before)
		assert.Nil(t, s.After)
	}
}

func TestStepTypeValid(t *testing.T) {
	assert.True(t, StepWait.Valid())
	assert.False(t, StepType("Hover").Valid())
}
