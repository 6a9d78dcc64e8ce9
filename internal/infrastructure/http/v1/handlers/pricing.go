package handlers

import (
	"github.com/gin-gonic/gin"

	"dentallab/internal/core/apperror"
	"dentallab/internal/infrastructure/http/v1/dto"
)

// PricingHandler exposes the price resolver.
type PricingHandler struct {
	*BaseHandler
	resolver PriceResolver
}

func NewPricingHandler(base *BaseHandler, resolver PriceResolver) *PricingHandler {
	return &PricingHandler{BaseHandler: base, resolver: resolver}
}

// Resolve handles GET /pricing/resolve.
func (h *PricingHandler) Resolve(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var q dto.ResolvePriceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	workItemID, clientID, manual, err := q.Parse()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return
	}
	res, err := h.resolver.Resolve(c.Request.Context(), org, clientID, workItemID, manual)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
