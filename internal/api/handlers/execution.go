package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"stepflow/internal/models"
	"stepflow/internal/services"
	"stepflow/pkg/database"
	"stepflow/pkg/response"
)

// StartBatchRequest selects scenarios by id or by number. Ids win when both are set.
type StartBatchRequest struct {
	ScenarioIDs []uint `json:"scenario_ids"`
	Numbers     []int  `json:"numbers"`
}

func (h *Handler) StartBatch(c *gin.Context) {
	var req StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var scenarios []models.Scenario
	var err error
	switch {
	case len(req.ScenarioIDs) > 0:
		scenarios, err = h.store.FindScenarios(c.Request.Context(), req.ScenarioIDs)
	case len(req.Numbers) > 0:
		scenarios, err = h.store.FindScenariosByNumber(c.Request.Context(), req.Numbers)
	default:
		response.BadRequest(c, "scenario_ids or numbers is required")
		return
	}
	if err != nil {
		response.InternalServerError(c, "failed to load scenarios: "+err.Error())
		return
	}
	if len(scenarios) == 0 {
		response.NotFound(c, "no matching scenarios")
		return
	}

	id, err := h.batches.Start(c.Request.Context(), scenarios)
	if errors.Is(err, services.ErrBatchRunning) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	h.log.Infof("🚀 batch %s started with %d scenarios", id, len(scenarios))
	response.SuccessWithMessage(c, "batch started", gin.H{"batch_id": id, "total": len(scenarios)})
}

func (h *Handler) StopBatch(c *gin.Context) {
	h.batches.RequestStop()
	response.SuccessWithMessage(c, "stop requested", h.batches.Status())
}

func (h *Handler) BatchStatus(c *gin.Context) {
	response.Success(c, h.batches.Status())
}

// RunScenario runs one scenario and replies when it has finished.
func (h *Handler) RunScenario(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		response.BadRequest(c, "invalid scenario id")
		return
	}
	sc, err := h.store.GetScenario(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, fmt.Sprintf("scenario %d not found", id))
		return
	}
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}

	passed, err := h.batches.RunScenario(c.Request.Context(), *sc)
	if errors.Is(err, services.ErrBatchRunning) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	result := models.ResultFailed
	if passed {
		result = models.ResultPassed
	}
	response.Success(c, gin.H{"scenario_id": id, "passed": passed, "result": result})
}
