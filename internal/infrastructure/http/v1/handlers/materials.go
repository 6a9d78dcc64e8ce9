package handlers

import (
	"github.com/gin-gonic/gin"

	"dentallab/internal/core/types"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/infrastructure/http/v1/dto"
)

// MaterialHandler serves the inventory ledger.
type MaterialHandler struct {
	*BaseHandler
	svc MaterialService
}

func NewMaterialHandler(base *BaseHandler, svc MaterialService) *MaterialHandler {
	return &MaterialHandler{BaseHandler: base, svc: svc}
}

// List handles GET /materials.
func (h *MaterialHandler) List(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var q dto.ListMaterialsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := h.svc.List(c.Request.Context(), org, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[inventory.Material]{Items: items})
}

// Movements handles GET /materials/:id/movements.
func (h *MaterialHandler) Movements(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var q dto.MovementsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := h.svc.Movements(c.Request.Context(), org, materialID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[inventory.Movement]{Items: items})
}

// Receive handles POST /materials/:id/receipts.
func (h *MaterialHandler) Receive(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var price *types.Money
	if req.UnitPrice != nil {
		p := *req.UnitPrice
		price = &p
	}
	mv, err := h.svc.Receive(c.Request.Context(), org, materialID, req.Quantity, price, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, mv)
}

// Deduct handles POST /materials/:id/deductions.
func (h *MaterialHandler) Deduct(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.DeductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	mv, err := h.svc.Deduct(c.Request.Context(), org, materialID, req.Quantity, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, mv)
}

// Inventory handles POST /materials/:id/inventory.
func (h *MaterialHandler) Inventory(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.InventoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	mv, err := h.svc.Adjust(c.Request.Context(), org, materialID, req.CountedStock, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, mv)
}
