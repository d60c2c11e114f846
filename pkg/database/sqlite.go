package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"stepflow/internal/models"
)

// SQLiteStore is the single-file store used by the CLI and local servers.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS step_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		requires_user_input INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS scenarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id INTEGER NOT NULL DEFAULT 0,
		number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT 'NotRun',
		executed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_scenarios_number ON scenarios(number);

	CREATE TABLE IF NOT EXISTS scenario_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario_id INTEGER NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		template_id INTEGER NOT NULL REFERENCES step_templates(id),
		step_order INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		scenario_target TEXT NOT NULL DEFAULT '',
		scenario_value TEXT NOT NULL DEFAULT '',
		custom_value TEXT NOT NULL DEFAULT '',
		scenario_description TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_scenario_steps_scenario ON scenario_steps(scenario_id);

	INSERT OR IGNORE INTO profiles (name) VALUES ('` + defaultProfile + `');
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize tables: %w", err)
	}
	return nil
}

const scenarioColumns = `id, profile_id, number, description, result, executed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenario(row rowScanner) (models.Scenario, error) {
	var sc models.Scenario
	var executed, created, updated sql.NullTime
	err := row.Scan(&sc.ID, &sc.ProfileID, &sc.Number, &sc.Description, &sc.Result, &executed, &created, &updated)
	if err != nil {
		return sc, err
	}
	if executed.Valid {
		t := executed.Time
		sc.ExecutedAt = &t
	}
	sc.CreatedAt = created.Time
	sc.UpdatedAt = updated.Time
	return sc, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *SQLiteStore) scenario(ctx context.Context, id uint) (*models.Scenario, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, id)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario %d: %w", id, err)
	}
	return &sc, nil
}

func (s *SQLiteStore) steps(ctx context.Context, scenarioID uint) ([]models.ScenarioStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ss.id, ss.scenario_id, ss.template_id, ss.step_order, ss.name,
		       ss.scenario_target, ss.scenario_value, ss.custom_value, ss.scenario_description,
		       t.name, t.type, t.target, t.value, t.description, t.requires_user_input
		FROM scenario_steps ss
		JOIN step_templates t ON t.id = ss.template_id
		WHERE ss.scenario_id = ?
		ORDER BY ss.step_order, ss.id`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("load steps of scenario %d: %w", scenarioID, err)
	}
	defer rows.Close()

	var out []models.ScenarioStep
	for rows.Next() {
		var st models.ScenarioStep
		t := &st.Template
		if err := rows.Scan(&st.ID, &st.ScenarioID, &st.TemplateID, &st.Order, &st.Name,
			&st.ScenarioTarget, &st.ScenarioValue, &st.CustomValue, &st.ScenarioDescription,
			&t.Name, &t.Type, &t.Target, &t.Value, &t.Description, &t.RequiresUserInput); err != nil {
			return nil, err
		}
		t.ID = st.TemplateID
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ScenarioSteps(ctx context.Context, scenarioID uint) ([]models.StepRecord, error) {
	if _, err := s.scenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	steps, err := s.steps(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	return records(steps), nil
}

func (s *SQLiteStore) UpdateScenarioResult(ctx context.Context, scenarioID uint, result models.ScenarioResult, executedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scenarios SET result = ?, executed_at = ?, updated_at = ? WHERE id = ?`,
		string(result), executedAt, time.Now(), scenarioID)
	if err != nil {
		return fmt.Errorf("update scenario %d: %w", scenarioID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scenario %d: %w", scenarioID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetScenario(ctx context.Context, id uint) (*models.Scenario, error) {
	sc, err := s.scenario(ctx, id)
	if err != nil {
		return nil, err
	}
	if sc.Steps, err = s.steps(ctx, id); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *SQLiteStore) list(ctx context.Context, where string, args ...any) ([]models.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios `+where+` ORDER BY number, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var out []models.Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func placeholders[T any](vals []T) (string, []any) {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(vals)), ","), args
}

func (s *SQLiteStore) FindScenarios(ctx context.Context, ids []uint) ([]models.Scenario, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph, args := placeholders(ids)
	return s.list(ctx, `WHERE id IN (`+ph+`)`, args...)
}

func (s *SQLiteStore) FindScenariosByNumber(ctx context.Context, numbers []int) ([]models.Scenario, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	ph, args := placeholders(numbers)
	return s.list(ctx, `WHERE number IN (`+ph+`)`, args...)
}

func (s *SQLiteStore) ListScenarios(ctx context.Context) ([]models.Scenario, error) {
	return s.list(ctx, "")
}

func (s *SQLiteStore) SaveTemplate(ctx context.Context, t *models.StepTemplate) error {
	return saveTemplate(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveTemplate(ctx context.Context, db execer, t *models.StepTemplate) error {
	if !t.Type.Valid() {
		return fmt.Errorf("template %q: unknown step type %q", t.Name, t.Type)
	}
	now := time.Now()
	if t.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO step_templates (name, type, target, value, description, requires_user_input, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Name, string(t.Type), t.Target, t.Value, t.Description, t.RequiresUserInput, now, now)
		if err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID, t.CreatedAt, t.UpdatedAt = uint(id), now, now
		return nil
	}
	_, err := db.ExecContext(ctx, `
		UPDATE step_templates SET name = ?, type = ?, target = ?, value = ?, description = ?,
		       requires_user_input = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, string(t.Type), t.Target, t.Value, t.Description, t.RequiresUserInput, now, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update template %d: %w", t.ID, err)
	}
	t.UpdatedAt = now
	return nil
}

// SaveScenario writes the scenario and replaces its steps. Steps whose
// template has no id yet get the template created first.
func (s *SQLiteStore) SaveScenario(ctx context.Context, sc *models.Scenario) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if sc.Result == "" {
		sc.Result = models.ResultNotRun
	}
	now := time.Now()
	if sc.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scenarios (profile_id, number, description, result, executed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sc.ProfileID, sc.Number, sc.Description, string(sc.Result), nullTime(sc.ExecutedAt), now, now)
		if err != nil {
			return fmt.Errorf("failed to create scenario: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		sc.ID, sc.CreatedAt = uint(id), now
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE scenarios SET profile_id = ?, number = ?, description = ?, result = ?, executed_at = ?, updated_at = ?
			WHERE id = ?`,
			sc.ProfileID, sc.Number, sc.Description, string(sc.Result), nullTime(sc.ExecutedAt), now, sc.ID); err != nil {
			return fmt.Errorf("failed to update scenario %d: %w", sc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_steps WHERE scenario_id = ?`, sc.ID); err != nil {
			return err
		}
	}
	sc.UpdatedAt = now

	for i := range sc.Steps {
		st := &sc.Steps[i]
		if st.TemplateID == 0 {
			if err := saveTemplate(ctx, tx, &st.Template); err != nil {
				return err
			}
			st.TemplateID = st.Template.ID
		}
		st.ScenarioID = sc.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scenario_steps (scenario_id, template_id, step_order, name, scenario_target,
			       scenario_value, custom_value, scenario_description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			st.ScenarioID, st.TemplateID, st.Order, st.Name, st.ScenarioTarget,
			st.ScenarioValue, st.CustomValue, st.ScenarioDescription, now, now)
		if err != nil {
			return fmt.Errorf("failed to create step %d of scenario %d: %w", st.Order, sc.ID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		st.ID = uint(id)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
