package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stepflow/internal/config"
	"stepflow/internal/models"
)

var ErrNotFound = errors.New("record not found")

const defaultProfile = "Default"

// Store is the persistence surface shared by both drivers.
type Store interface {
	ScenarioSteps(ctx context.Context, scenarioID uint) ([]models.StepRecord, error)
	UpdateScenarioResult(ctx context.Context, scenarioID uint, result models.ScenarioResult, executedAt time.Time) error
	GetScenario(ctx context.Context, id uint) (*models.Scenario, error)
	FindScenarios(ctx context.Context, ids []uint) ([]models.Scenario, error)
	FindScenariosByNumber(ctx context.Context, numbers []int) ([]models.Scenario, error)
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
	SaveTemplate(ctx context.Context, t *models.StepTemplate) error
	SaveScenario(ctx context.Context, s *models.Scenario) error
	Close() error
}

// Open connects to the configured driver and prepares its schema.
func Open(cfg *config.Config, log *zap.SugaredLogger) (Store, error) {
	switch cfg.Database.Driver {
	case "mysql":
		s, err := InitDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite", "":
		s, err := NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func records(steps []models.ScenarioStep) []models.StepRecord {
	out := make([]models.StepRecord, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Record())
	}
	return out
}
