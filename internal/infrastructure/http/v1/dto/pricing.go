package dto

import (
	"strings"

	"github.com/google/uuid"

	"dentallab/internal/core/types"
)

// ResolvePriceQuery asks for the effective unit price of a work item.
type ResolvePriceQuery struct {
	WorkItemID  string `form:"workItemId" binding:"required,uuid"`
	ClientID    string `form:"clientId" binding:"omitempty,uuid"`
	ManualPrice string `form:"manualPrice" binding:"omitempty,numeric"`
}

// Parse returns the typed parameters. Binding has already checked the formats.
func (q ResolvePriceQuery) Parse() (workItemID uuid.UUID, clientID *uuid.UUID, manual *types.Money, err error) {
	if workItemID, err = uuid.Parse(q.WorkItemID); err != nil {
		return
	}
	if clientID, err = parseOptionalID("clientId", q.ClientID); err != nil {
		return
	}
	if s := strings.TrimSpace(q.ManualPrice); s != "" {
		var m types.Money
		if m, err = types.NewMoneyFromString(s); err != nil {
			return
		}
		manual = &m
	}
	return
}
