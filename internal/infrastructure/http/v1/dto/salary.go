package dto

import (
	"github.com/google/uuid"

	"dentallab/internal/domain/salary"
)

// AccrueRequest recomputes one technician, or everyone when EmployeeID is empty.
type AccrueRequest struct {
	Period     string     `json:"period" binding:"required,datetime=2006-01"`
	EmployeeID *uuid.UUID `json:"employeeId"`
}

// RecordsQuery selects the stored accruals of a month.
type RecordsQuery struct {
	Period string `form:"period" binding:"required,datetime=2006-01"`
}

// AccrualsResponse is the result of a recomputation.
type AccrualsResponse struct {
	Period   string           `json:"period"`
	Accruals []salary.Accrual `json:"accruals"`
}
