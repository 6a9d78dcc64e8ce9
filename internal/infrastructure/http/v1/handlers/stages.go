package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dentallab/internal/domain/orders"
	"dentallab/internal/infrastructure/http/v1/dto"
)

// StageHandler serves production stage transitions.
type StageHandler struct {
	*BaseHandler
	svc StageService
}

func NewStageHandler(base *BaseHandler, svc StageService) *StageHandler {
	return &StageHandler{BaseHandler: base, svc: svc}
}

type stageOp func(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*orders.StageResult, error)

func (h *StageHandler) transition(c *gin.Context, op stageOp) {
	org, orderID, stageID, ok := h.stageParams(c)
	if !ok {
		return
	}
	res, err := op(c.Request.Context(), org, orderID, stageID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Start handles POST /orders/:id/stages/:stageId/start.
func (h *StageHandler) Start(c *gin.Context) { h.transition(c, h.svc.StartStage) }

// Complete handles POST /orders/:id/stages/:stageId/complete.
func (h *StageHandler) Complete(c *gin.Context) { h.transition(c, h.svc.CompleteStage) }

// Skip handles POST /orders/:id/stages/:stageId/skip.
func (h *StageHandler) Skip(c *gin.Context) { h.transition(c, h.svc.SkipStage) }

// Assign handles PUT /orders/:id/stages/:stageId/assignee.
func (h *StageHandler) Assign(c *gin.Context) {
	org, orderID, stageID, ok := h.stageParams(c)
	if !ok {
		return
	}
	var req dto.AssignStageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	stage, err := h.svc.AssignStage(c.Request.Context(), org, orderID, stageID, req.AssigneeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stage)
}

func (h *StageHandler) stageParams(c *gin.Context) (org, orderID, stageID uuid.UUID, ok bool) {
	if org, ok = h.OrgID(c); !ok {
		return
	}
	if orderID, ok = h.PathID(c, "id"); !ok {
		return
	}
	stageID, ok = h.PathID(c, "stageId")
	return
}
