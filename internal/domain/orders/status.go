package orders

import (
	"dentallab/internal/core/apperror"
)

// ValidateTransition checks an explicit status change requested by a user.
// READY requires every stage to be terminal. Delivered and cancelled orders
// never change status again.
func ValidateTransition(from, to Status, stages []Stage) error {
	if !to.IsValid() {
		return apperror.NewValidation("unknown order status").WithDetail("status", to)
	}
	if from == to {
		return nil
	}
	if from.IsClosed() {
		return apperror.NewBusinessRule(apperror.CodeInvalidStatusTransition, "Order status can no longer change").
			WithDetail("from", from).
			WithDetail("to", to)
	}
	if to == StatusReady && !AllTerminal(stages) {
		pending := 0
		for _, s := range stages {
			if !s.Status.IsTerminal() {
				pending++
			}
		}
		return apperror.NewBusinessRule(apperror.CodeStagesNotDone, "All stages must be completed or skipped first").
			WithDetail("pending_stages", pending)
	}
	return nil
}
