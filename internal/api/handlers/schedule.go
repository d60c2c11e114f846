package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"stepflow/pkg/response"
)

type CreateScheduleRequest struct {
	CronExpression string `json:"cron_expression" binding:"required"`
	ScenarioIDs    []uint `json:"scenario_ids" binding:"required,min=1"`
}

func (h *Handler) GetSchedules(c *gin.Context) {
	response.Success(c, h.schedules.Schedules())
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, err := h.schedules.AddSchedule(req.CronExpression, req.ScenarioIDs)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "schedule created", s)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		response.BadRequest(c, "invalid schedule id")
		return
	}
	if !h.schedules.RemoveSchedule(cron.EntryID(id)) {
		response.NotFound(c, "schedule not found")
		return
	}
	response.SuccessWithMessage(c, "schedule deleted", nil)
}
