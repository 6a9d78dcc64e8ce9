package handlers

import (
	"github.com/gin-gonic/gin"

	"dentallab/internal/domain/salary"
	"dentallab/internal/infrastructure/http/v1/dto"
)

// SalaryHandler serves salary accruals.
type SalaryHandler struct {
	*BaseHandler
	svc SalaryService
}

func NewSalaryHandler(base *BaseHandler, svc SalaryService) *SalaryHandler {
	return &SalaryHandler{BaseHandler: base, svc: svc}
}

// Accrue handles POST /salary/accruals.
func (h *SalaryHandler) Accrue(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var req dto.AccrueRequest
	if !h.BindJSON(c, &req) {
		return
	}
	period, err := salary.ParsePeriod(req.Period)
	if err != nil {
		h.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	var accruals []salary.Accrual
	if req.EmployeeID != nil {
		acc, err := h.svc.Accrue(ctx, org, *req.EmployeeID, period)
		if err != nil {
			h.Error(c, err)
			return
		}
		accruals = []salary.Accrual{*acc}
	} else if accruals, err = h.svc.AccrueAll(ctx, org, period); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AccrualsResponse{Period: period.String(), Accruals: accruals})
}

// Records handles GET /salary/records.
func (h *SalaryHandler) Records(c *gin.Context) {
	org, ok := h.OrgID(c)
	if !ok {
		return
	}
	var q dto.RecordsQuery
	if !h.BindQuery(c, &q) {
		return
	}
	period, err := salary.ParsePeriod(q.Period)
	if err != nil {
		h.Error(c, err)
		return
	}
	records, err := h.svc.ListRecords(c.Request.Context(), org, period)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[salary.Record]{Items: records})
}
