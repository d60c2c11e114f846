package models

import (
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

type StepType string

const (
	StepNavigate     StepType = "Navigate"
	StepElementClick StepType = "ElementClick"
	StepTextInput    StepType = "TextInput"
	StepWait         StepType = "Wait"
	StepScreenshot   StepType = "Screenshot"
)

// Valid reports whether t is one of the supported step types.
func (t StepType) Valid() bool {
	switch t {
	case StepNavigate, StepElementClick, StepTextInput, StepWait, StepScreenshot:
		return true
	}
	return false
}

type StepStatus string

const (
	StepPending   StepStatus = "Pending"
	StepCompleted StepStatus = "Completed"
	StepFailed    StepStatus = "Failed"
)

type ScenarioResult string

const (
	ResultNotRun ScenarioResult = "NotRun"
	ResultPassed ScenarioResult = "Passed"
	ResultFailed ScenarioResult = "Failed"
)

type Profile struct {
	BaseModel
	Name      string     `json:"name" gorm:"size:100;not null"`
	BaseURL   string     `json:"base_url" gorm:"size:500"`
	Scenarios []Scenario `json:"scenarios,omitempty" gorm:"foreignKey:ProfileID"`
}

// StepTemplate is a reusable step definition shared by many scenarios.
type StepTemplate struct {
	BaseModel
	Name              string   `json:"name" gorm:"size:200;not null"`
	Type              StepType `json:"type" gorm:"size:20;not null"`
	Target            string   `json:"target" gorm:"size:1000"`
	Value             string   `json:"value" gorm:"type:text"`
	Description       string   `json:"description" gorm:"size:1000"`
	RequiresUserInput bool     `json:"requires_user_input" gorm:"default:false"`
}

// ScenarioStep places a template inside a scenario and carries the
// scenario-specific overrides for it.
type ScenarioStep struct {
	BaseModel
	ScenarioID          uint         `json:"scenario_id" gorm:"not null;index"`
	TemplateID          uint         `json:"template_id" gorm:"not null"`
	Template            StepTemplate `json:"template" gorm:"foreignKey:TemplateID"`
	Order               int          `json:"order" gorm:"column:step_order;not null"`
	Name                string       `json:"name" gorm:"size:200"`
	ScenarioTarget      string       `json:"scenario_target" gorm:"size:1000"`
	ScenarioValue       string       `json:"scenario_value" gorm:"type:text"`
	CustomValue         string       `json:"custom_value" gorm:"type:text"`
	ScenarioDescription string       `json:"scenario_description" gorm:"size:1000"`
}

type Scenario struct {
	BaseModel
	ProfileID   uint           `json:"profile_id" gorm:"index"`
	Number      int            `json:"number" gorm:"not null;index"`
	Description string         `json:"description" gorm:"size:1000"`
	Result      ScenarioResult `json:"result" gorm:"size:20;default:NotRun"`
	ExecutedAt  *time.Time     `json:"executed_at"`
	Steps       []ScenarioStep `json:"steps,omitempty" gorm:"foreignKey:ScenarioID"`
}

// StepRecord is the flattened, fully resolved view of a step handed to the engine.
type StepRecord struct {
	Order             int      `json:"order"`
	Name              string   `json:"name"`
	Type              StepType `json:"type"`
	Target            string   `json:"target"`
	Value             string   `json:"value"`
	Description       string   `json:"description,omitempty"`
	RequiresUserInput bool     `json:"requires_user_input"`
}

// Record resolves the overrides of s against its template.
//
// Wait and TextInput values take the first non-empty of the scenario value,
// the custom value and the template value. Targets, names and descriptions
// prefer the scenario override and fall back to the template.
func (s ScenarioStep) Record() StepRecord {
	rec := StepRecord{
		Order:             s.Order,
		Name:              FirstNonEmpty(s.Name, s.Template.Name),
		Type:              s.Template.Type,
		Target:            FirstNonEmpty(s.ScenarioTarget, s.Template.Target),
		Description:       FirstNonEmpty(s.ScenarioDescription, s.Template.Description),
		RequiresUserInput: s.Template.RequiresUserInput,
	}
	switch rec.Type {
	case StepWait, StepTextInput:
		rec.Value = FirstNonEmpty(s.ScenarioValue, s.CustomValue, s.Template.Value)
	default:
		rec.Value = FirstNonEmpty(s.ScenarioValue, s.Template.Value)
	}
	return rec
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type SnapshotSide string

const (
	SnapshotBefore SnapshotSide = "before"
	SnapshotAfter  SnapshotSide = "after"
)

type Snapshot struct {
	StepOrder  int          `json:"step_order"`
	Side       SnapshotSide `json:"side"`
	CapturedAt time.Time    `json:"captured_at"`
	Path       string       `json:"path"`
	Size       int          `json:"size"`
}

// Step is the runtime state of one step during a scenario run.
type Step struct {
	StepRecord
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	Before *Snapshot  `json:"before,omitempty"`
	After  *Snapshot  `json:"after,omitempty"`
}

// NewSteps builds pending runtime steps from resolved records.
func NewSteps(records []StepRecord) []*Step {
	steps := make([]*Step, 0, len(records))
	for _, rec := range records {
		steps = append(steps, &Step{StepRecord: rec, Status: StepPending})
	}
	return steps
}
