package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stepflow/internal/config"
	"stepflow/internal/models"
	"stepflow/internal/services"
	"stepflow/pkg/auth"
	"stepflow/pkg/logger"
)

// BatchController is the orchestrator surface driven over HTTP.
type BatchController interface {
	Start(ctx context.Context, scenarios []models.Scenario) (string, error)
	RunScenario(ctx context.Context, sc models.Scenario) (bool, error)
	RequestStop()
	Status() services.Status
}

type ScenarioStore interface {
	services.ScenarioRepository
	ListScenarios(ctx context.Context) ([]models.Scenario, error)
}

type ScheduleManager interface {
	AddSchedule(expr string, ids []uint) (services.Schedule, error)
	RemoveSchedule(id cron.EntryID) bool
	Schedules() []services.Schedule
}

type Handler struct {
	batches   BatchController
	store     ScenarioStore
	schedules ScheduleManager
	signer    *auth.Signer
	auth      config.AuthConfig
	jwtExpire int
	hub       *Hub
	log       *zap.SugaredLogger
}

type Deps struct {
	Batches   BatchController
	Store     ScenarioStore
	Schedules ScheduleManager
	Signer    *auth.Signer
	Auth      config.AuthConfig
	JWTExpire int
	Hub       *Hub
	Log       *zap.SugaredLogger
}

func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = logger.L()
	}
	if d.Hub == nil {
		d.Hub = NewHub(d.Log)
	}
	return &Handler{
		batches:   d.Batches,
		store:     d.Store,
		schedules: d.Schedules,
		signer:    d.Signer,
		auth:      d.Auth,
		jwtExpire: d.JWTExpire,
		hub:       d.Hub,
		log:       d.Log,
	}
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
