package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dentallab/internal/domain/orders"
	"dentallab/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves the order aggregate.
type OrderHandler struct {
	*BaseHandler
	svc OrderService
}

func NewOrderHandler(base *BaseHandler, svc OrderService) *OrderHandler {
	return &OrderHandler{BaseHandler: base, svc: svc}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.svc.Create(c.Request.Context(), org, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// List handles GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var q dto.ListOrdersQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.svc.List(c.Request.Context(), org, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[orders.Order]{
		Items:      res.Items,
		TotalCount: res.TotalCount,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Kanban handles GET /orders/kanban.
func (h *OrderHandler) Kanban(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	cols, err := h.svc.Kanban(c.Request.Context(), org)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[orders.KanbanColumn]{Items: cols})
}

// Dashboard handles GET /orders/dashboard.
func (h *OrderHandler) Dashboard(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	d, err := h.svc.Dashboard(c.Request.Context(), org)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	order, err := h.svc.Get(c.Request.Context(), org, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Update handles PATCH /orders/:id.
func (h *OrderHandler) Update(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.svc.Update(c.Request.Context(), org, orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Cancel handles DELETE /orders/:id. Orders are never removed, only cancelled.
func (h *OrderHandler) Cancel(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	order, err := h.svc.Cancel(c.Request.Context(), org, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// ReplaceItems handles PUT /orders/:id/items.
func (h *OrderHandler) ReplaceItems(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	var req dto.ReplaceItemsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.svc.ReplaceItems(c.Request.Context(), org, orderID, req.ToInputs())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// AddComment handles POST /orders/:id/comments.
func (h *OrderHandler) AddComment(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	var req dto.CommentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	entry, err := h.svc.AddComment(c.Request.Context(), org, orderID, req.Text)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, entry)
}

// WriteOff handles POST /orders/:id/write-off.
func (h *OrderHandler) WriteOff(c *gin.Context) {
	org, orderID, ok := h.orderParams(c)
	if !ok {
		return
	}
	report, err := h.svc.WriteOffMaterials(c.Request.Context(), org, orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

func (h *OrderHandler) orderParams(c *gin.Context) (org, orderID uuid.UUID, ok bool) {
	if org, ok = h.OrgID(c); !ok {
		return
	}
	orderID, ok = h.PathID(c, "id")
	return
}
