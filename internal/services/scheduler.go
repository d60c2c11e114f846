package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stepflow/internal/models"
	"stepflow/pkg/logger"
)

// BatchStarter launches a batch in the background.
type BatchStarter interface {
	Start(ctx context.Context, scenarios []models.Scenario) (string, error)
}

type ScenarioFinder interface {
	FindScenarios(ctx context.Context, ids []uint) ([]models.Scenario, error)
}

type Schedule struct {
	ID          cron.EntryID `json:"id"`
	Expression  string       `json:"cron_expression"`
	ScenarioIDs []uint       `json:"scenario_ids"`
	Next        time.Time    `json:"next,omitempty"`
	Prev        time.Time    `json:"prev,omitempty"`
}

type SchedulerService struct {
	cron    *cron.Cron
	starter BatchStarter
	finder  ScenarioFinder
	log     *zap.SugaredLogger

	mu      sync.Mutex
	entries map[cron.EntryID]Schedule
}

func NewScheduler(starter BatchStarter, finder ScenarioFinder, log *zap.SugaredLogger) *SchedulerService {
	if log == nil {
		log = logger.L()
	}
	return &SchedulerService{
		cron:    cron.New(cron.WithSeconds()),
		starter: starter,
		finder:  finder,
		log:     log,
		entries: make(map[cron.EntryID]Schedule),
	}
}

func (s *SchedulerService) Start() {
	s.cron.Start()
	s.log.Info("Scheduler service started")
}

// Stop halts the cron loop. The returned context is done once running jobs finish.
func (s *SchedulerService) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("Scheduler service stopped")
	return ctx
}

// AddSchedule registers a batch of scenarios to run on a six-field cron expression.
func (s *SchedulerService) AddSchedule(expression string, scenarioIDs []uint) (Schedule, error) {
	if len(scenarioIDs) == 0 {
		return Schedule{}, errors.New("schedule needs at least one scenario")
	}
	ids := append([]uint(nil), scenarioIDs...)

	var entryID cron.EntryID
	entryID, err := s.cron.AddFunc(expression, func() { s.fire(entryID) })
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	sched := Schedule{ID: entryID, Expression: expression, ScenarioIDs: ids}
	s.mu.Lock()
	s.entries[entryID] = sched
	s.mu.Unlock()

	s.log.Infof("Added schedule %d (%s) for scenarios %v", entryID, expression, ids)
	return s.withTimes(sched), nil
}

// RemoveSchedule reports whether an entry with that id existed.
func (s *SchedulerService) RemoveSchedule(id cron.EntryID) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cron.Remove(id)
	s.log.Infof("Removed schedule %d", id)
	return true
}

func (s *SchedulerService) Schedules() []Schedule {
	s.mu.Lock()
	out := make([]Schedule, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.Unlock()

	for i := range out {
		out[i] = s.withTimes(out[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *SchedulerService) withTimes(sched Schedule) Schedule {
	e := s.cron.Entry(sched.ID)
	sched.Next, sched.Prev = e.Next, e.Prev
	return sched
}

func (s *SchedulerService) fire(id cron.EntryID) {
	s.mu.Lock()
	sched, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	scenarios, err := s.finder.FindScenarios(ctx, sched.ScenarioIDs)
	if err != nil {
		s.log.Errorf("Failed to load scenarios for schedule %d: %v", id, err)
		return
	}
	if len(scenarios) == 0 {
		s.log.Warnf("Schedule %d has no scenarios to run", id)
		return
	}

	batchID, err := s.starter.Start(ctx, scenarios)
	if errors.Is(err, ErrBatchRunning) {
		s.log.Warnf("⚠️ Skipping schedule %d, a batch is already running", id)
		return
	}
	if err != nil {
		s.log.Errorf("Failed to start scheduled batch %d: %v", id, err)
		return
	}
	s.log.Infof("Started scheduled batch %s for schedule %d (%d scenarios)", batchID, id, len(scenarios))
}
