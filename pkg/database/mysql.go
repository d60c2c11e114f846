package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"stepflow/internal/config"
	"stepflow/internal/models"
	"stepflow/pkg/logger"
)

// GormStore keeps profiles, templates and scenarios in any gorm dialect;
// production runs it on MySQL.
type GormStore struct {
	DB  *gorm.DB
	log *zap.SugaredLogger
}

var _ Store = (*GormStore)(nil)

func InitDatabase(cfg *config.Config, log *zap.SugaredLogger) (*GormStore, error) {
	if log == nil {
		log = logger.L()
	}
	level := gormlogger.Warn
	if cfg.Log.Development {
		level = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("🗄️ Database connected successfully")
	return NewGormStore(db, log)
}

// NewGormStore wraps an open gorm connection and migrates the schema.
func NewGormStore(db *gorm.DB, log *zap.SugaredLogger) (*GormStore, error) {
	if log == nil {
		log = logger.L()
	}
	s := &GormStore{DB: db, log: log}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GormStore) AutoMigrate() error {
	err := s.DB.AutoMigrate(
		&models.Profile{},
		&models.StepTemplate{},
		&models.Scenario{},
		&models.ScenarioStep{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	s.log.Info("🗄️ Database migration completed")
	return s.SeedDefaultData()
}

// SeedDefaultData creates the default profile when none exists.
func (s *GormStore) SeedDefaultData() error {
	var existing models.Profile
	err := s.DB.Where("name = ?", defaultProfile).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.DB.Create(&models.Profile{Name: defaultProfile}).Error; err != nil {
			return fmt.Errorf("failed to create profile %s: %w", defaultProfile, err)
		}
		return nil
	}
	return err
}

func (s *GormStore) ScenarioSteps(ctx context.Context, scenarioID uint) ([]models.StepRecord, error) {
	if _, err := s.scenario(ctx, scenarioID, false); err != nil {
		return nil, err
	}
	var steps []models.ScenarioStep
	err := s.DB.WithContext(ctx).
		Preload("Template").
		Where("scenario_id = ?", scenarioID).
		Order("step_order").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("load steps of scenario %d: %w", scenarioID, err)
	}
	return records(steps), nil
}

func (s *GormStore) UpdateScenarioResult(ctx context.Context, scenarioID uint, result models.ScenarioResult, executedAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Scenario{}).
		Where("id = ?", scenarioID).
		Updates(map[string]any{"result": result, "executed_at": executedAt})
	if res.Error != nil {
		return fmt.Errorf("update scenario %d: %w", scenarioID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("scenario %d: %w", scenarioID, ErrNotFound)
	}
	return nil
}

func (s *GormStore) GetScenario(ctx context.Context, id uint) (*models.Scenario, error) {
	return s.scenario(ctx, id, true)
}

func (s *GormStore) scenario(ctx context.Context, id uint, withSteps bool) (*models.Scenario, error) {
	q := s.DB.WithContext(ctx)
	if withSteps {
		q = q.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order") }).
			Preload("Steps.Template")
	}
	var sc models.Scenario
	if err := q.First(&sc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("scenario %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &sc, nil
}

func (s *GormStore) FindScenarios(ctx context.Context, ids []uint) ([]models.Scenario, error) {
	var out []models.Scenario
	err := s.DB.WithContext(ctx).Where("id IN ?", ids).Order("number").Find(&out).Error
	return out, err
}

func (s *GormStore) FindScenariosByNumber(ctx context.Context, numbers []int) ([]models.Scenario, error) {
	var out []models.Scenario
	err := s.DB.WithContext(ctx).Where("number IN ?", numbers).Order("number").Find(&out).Error
	return out, err
}

func (s *GormStore) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	var out []models.Scenario
	err := s.DB.WithContext(ctx).Order("number").Find(&out).Error
	return out, err
}

func (s *GormStore) SaveTemplate(ctx context.Context, t *models.StepTemplate) error {
	if !t.Type.Valid() {
		return fmt.Errorf("template %q: unknown step type %q", t.Name, t.Type)
	}
	return s.DB.WithContext(ctx).Save(t).Error
}

// SaveScenario creates or updates the scenario and replaces its steps with
// sc.Steps. Steps without a template id get their template created first.
func (s *GormStore) SaveScenario(ctx context.Context, sc *models.Scenario) error {
	if sc.Result == "" {
		sc.Result = models.ResultNotRun
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sc.ProfileID == 0 {
			var p models.Profile
			if err := tx.Where("name = ?", defaultProfile).First(&p).Error; err != nil {
				return fmt.Errorf("failed to load profile %s: %w", defaultProfile, err)
			}
			sc.ProfileID = p.ID
		}
		if err := tx.Omit(clause.Associations).Save(sc).Error; err != nil {
			return fmt.Errorf("failed to save scenario %d: %w", sc.Number, err)
		}
		if err := tx.Unscoped().Where("scenario_id = ?", sc.ID).Delete(&models.ScenarioStep{}).Error; err != nil {
			return fmt.Errorf("failed to clear steps of scenario %d: %w", sc.ID, err)
		}
		if len(sc.Steps) == 0 {
			return nil
		}

		for i := range sc.Steps {
			st := &sc.Steps[i]
			if st.TemplateID == 0 {
				if err := s.createTemplate(tx, &st.Template); err != nil {
					return err
				}
				st.TemplateID = st.Template.ID
			}
			st.ID, st.CreatedAt, st.ScenarioID = 0, time.Time{}, sc.ID
		}
		if err := tx.Omit(clause.Associations).Create(&sc.Steps).Error; err != nil {
			return fmt.Errorf("failed to create steps of scenario %d: %w", sc.ID, err)
		}
		return nil
	})
}

func (s *GormStore) createTemplate(tx *gorm.DB, t *models.StepTemplate) error {
	if !t.Type.Valid() {
		return fmt.Errorf("template %q: unknown step type %q", t.Name, t.Type)
	}
	if err := tx.Create(t).Error; err != nil {
		return fmt.Errorf("failed to create template %q: %w", t.Name, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
