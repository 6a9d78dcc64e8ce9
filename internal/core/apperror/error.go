// Package apperror provides structured error handling for the lab ERP API.
// Every rejected operation surfaces an AppError with a stable code and a human-readable message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to API clients.
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeOrderClosed             = "ORDER_CLOSED"
	CodeOrderAlreadyCancelled   = "ORDER_ALREADY_CANCELLED"
	CodeStageTerminal           = "STAGE_TERMINAL"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeStagesNotDone           = "STAGES_NOT_DONE"
	CodeAlreadyWrittenOff       = "ALREADY_WRITTEN_OFF"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeLocked       = "RESOURCE_LOCKED"
)

var statusByCode = map[string]int{
	CodeInternal:     http.StatusInternalServerError,
	CodeValidation:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeLocked:       http.StatusConflict,
}

// AppError is the standard error type of the platform.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	HTTPStatus int   `json:"-"`
	Err        error `json:"-"`
}

// New builds an error for code. Codes outside the table are business rule
// violations and map to 422.
func New(code, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error. It is logged, never rendered.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

// NewNotFound reports a missing entity. Entities of another organization are
// reported the same way.
func NewNotFound(entity string, id any) *AppError {
	return New(CodeNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewBusinessRule reports a rejected domain operation (422).
func NewBusinessRule(code, message string) *AppError {
	err := New(code, message)
	err.HTTPStatus = http.StatusUnprocessableEntity
	return err
}

// NewInsufficientStock carries quantities as decimal strings.
func NewInsufficientStock(materialID, requested, available string) *AppError {
	return New(CodeInsufficientStock, "Insufficient stock").
		WithDetail("material_id", materialID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// NewOrderClosed is returned when a delivered or cancelled order is edited.
func NewOrderClosed(orderID any, status string) *AppError {
	return New(CodeOrderClosed, "Order is closed for modifications").
		WithDetail("order_id", orderID).
		WithDetail("status", status)
}

// NewInternal hides err from the client.
func NewInternal(err error) *AppError {
	return New(CodeInternal, "Internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

func NewConflict(message string) *AppError {
	return New(CodeConflict, message)
}

// NewLocked is returned when a recomputation for the same key is already running.
func NewLocked(key string) *AppError {
	return New(CodeLocked, "Operation is already in progress").WithDetail("key", key)
}

// AsAppError extracts AppError from the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
