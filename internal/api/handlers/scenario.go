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

type ScenarioDetail struct {
	models.Scenario
	Records     []models.StepRecord `json:"records"`
	LoginPrefix bool                `json:"login_prefix"`
	HasLogin    bool                `json:"has_login"`
}

func (h *Handler) GetScenarios(c *gin.Context) {
	list, err := h.store.ListScenarios(c.Request.Context())
	if err != nil {
		response.InternalServerError(c, "failed to list scenarios")
		return
	}
	if list == nil {
		list = []models.Scenario{}
	}
	response.Success(c, list)
}

func (h *Handler) GetScenario(c *gin.Context) {
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

	records := make([]models.StepRecord, 0, len(sc.Steps))
	for _, st := range sc.Steps {
		records = append(records, st.Record())
	}
	response.Success(c, ScenarioDetail{
		Scenario:    *sc,
		Records:     records,
		LoginPrefix: services.HasLoginPrefix(records),
		HasLogin:    services.ContainsLoginSteps(records),
	})
}
