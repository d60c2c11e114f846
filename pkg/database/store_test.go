package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepflow/internal/models"
)

// backends runs fn once per Store implementation, each on a fresh database.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
	t.Run("gorm", func(t *testing.T) { fn(t, newGormTestStore(t)) })
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "stepflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func loginScenario(number int) *models.Scenario {
	return &models.Scenario{
		Number:      number,
		Description: "login and open dashboard",
		Steps: []models.ScenarioStep{
			{Order: 2, Template: models.StepTemplate{Name: "Enter username", Type: models.StepTextInput, Target: "#username", Value: "tmpl-user"}, CustomValue: "custom-user"},
			{Order: 1, Template: models.StepTemplate{Name: "Open login page", Type: models.StepNavigate, Target: "https://example.com/login"}},
			{Order: 3, Template: models.StepTemplate{Name: "Click login", Type: models.StepElementClick, Target: "#loginBtn"}, ScenarioTarget: "Login [DOUBLE-CLICK]"},
		},
	}
}

func TestSaveAndLoadScenarioSteps(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sc := loginScenario(1)
		require.NoError(t, s.SaveScenario(ctx, sc))
		require.NotZero(t, sc.ID)

		recs, err := s.ScenarioSteps(ctx, sc.ID)
		require.NoError(t, err)
		require.Len(t, recs, 3)

		assert.Equal(t, 1, recs[0].Order)
		assert.Equal(t, models.StepNavigate, recs[0].Type)
		assert.Equal(t, "custom-user", recs[1].Value)
		assert.Equal(t, "Login [DOUBLE-CLICK]", recs[2].Target)
		assert.Equal(t, "Click login", recs[2].Name)
	})
}

func TestScenarioStepsUnknownScenario(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		_, err := s.ScenarioSteps(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetScenario(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateScenarioResult(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sc := loginScenario(1)
		require.NoError(t, s.SaveScenario(ctx, sc))

		at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
		require.NoError(t, s.UpdateScenarioResult(ctx, sc.ID, models.ResultPassed, at))

		got, err := s.GetScenario(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ResultPassed, got.Result)
		require.NotNil(t, got.ExecutedAt)
		assert.True(t, at.Equal(*got.ExecutedAt))
		assert.Len(t, got.Steps, 3)

		assert.ErrorIs(t, s.UpdateScenarioResult(ctx, 999, models.ResultFailed, at), ErrNotFound)
	})
}

func TestFindScenarios(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, n := range []int{3, 1, 2} {
			require.NoError(t, s.SaveScenario(ctx, loginScenario(n)))
		}

		all, err := s.ListScenarios(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{all[0].Number, all[1].Number, all[2].Number})
		assert.Equal(t, models.ResultNotRun, all[0].Result)

		byNum, err := s.FindScenariosByNumber(ctx, []int{2, 3})
		require.NoError(t, err)
		assert.Len(t, byNum, 2)

		byID, err := s.FindScenarios(ctx, []uint{all[0].ID})
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, 1, byID[0].Number)

		none, err := s.FindScenarios(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSaveScenarioReplacesSteps(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sc := loginScenario(1)
		require.NoError(t, s.SaveScenario(ctx, sc))

		sc.Steps = sc.Steps[:1]
		require.NoError(t, s.SaveScenario(ctx, sc))

		recs, err := s.ScenarioSteps(ctx, sc.ID)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "Enter username", recs[0].Name)

		got, err := s.GetScenario(ctx, sc.ID)
		require.NoError(t, err)
		assert.Len(t, got.Steps, 1)
	})
}

func TestSaveScenarioPersistsEditedSteps(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sc := loginScenario(1)
		require.NoError(t, s.SaveScenario(ctx, sc))

		sc.Description = "login only"
		sc.Steps[0].CustomValue = "second-user"
		sc.Steps[2].Order = 4
		sc.Steps = append(sc.Steps, models.ScenarioStep{
			Order:    3,
			Template: models.StepTemplate{Name: "Pause", Type: models.StepWait, Value: "1"},
		})
		require.NoError(t, s.SaveScenario(ctx, sc))

		recs, err := s.ScenarioSteps(ctx, sc.ID)
		require.NoError(t, err)
		require.Len(t, recs, 4)
		assert.Equal(t, "second-user", recs[1].Value)
		assert.Equal(t, "Pause", recs[2].Name)
		assert.Equal(t, 4, recs[3].Order)
		assert.Equal(t, "Click login", recs[3].Name)

		got, err := s.GetScenario(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, "login only", got.Description)
	})
}

func TestSaveScenarioRejectsUnknownStepType(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sc := loginScenario(1)
		sc.Steps[1].Template.Type = "Hover"
		assert.Error(t, s.SaveScenario(ctx, sc))

		all, err := s.ListScenarios(ctx)
		require.NoError(t, err)
		assert.Empty(t, all, "a failed save leaves nothing behind")
	})
}

func TestSaveTemplateRejectsUnknownType(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		err := s.SaveTemplate(context.Background(), &models.StepTemplate{Name: "hover", Type: "Hover"})
		assert.Error(t, err)
	})
}
