package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
	"dentallab/internal/domain/auth"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/notification"
	"dentallab/pkg/logger"
)

// StageResult describes the effects of a stage transition.
type StageResult struct {
	Stage       Stage                     `json:"stage"`
	AutoStarted *Stage                    `json:"autoStarted,omitempty"`
	OrderReady  bool                      `json:"orderReady"`
	WriteOff    *inventory.WriteOffReport `json:"writeOff,omitempty"`
}

type stageTransition struct {
	action  HistoryAction
	apply   func(s *Stage, now time.Time) error
	advance bool
}

var (
	startTransition    = stageTransition{action: ActionStageStarted, apply: (*Stage).Start}
	completeTransition = stageTransition{action: ActionStageCompleted, apply: (*Stage).Complete, advance: true}
	skipTransition     = stageTransition{action: ActionStageSkipped, apply: (*Stage).Skip, advance: true}
)

// StartStage moves a stage to IN_PROGRESS.
func (s *Service) StartStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*StageResult, error) {
	return s.transitionStage(ctx, orgID, orderID, stageID, startTransition)
}

// CompleteStage finishes a stage and advances the pipeline.
func (s *Service) CompleteStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*StageResult, error) {
	return s.transitionStage(ctx, orgID, orderID, stageID, completeTransition)
}

// SkipStage marks a stage as not needed and advances the pipeline like a completion.
func (s *Service) SkipStage(ctx context.Context, orgID, orderID, stageID uuid.UUID) (*StageResult, error) {
	return s.transitionStage(ctx, orgID, orderID, stageID, skipTransition)
}

// transitionStage applies t under the order row lock. When the pipeline
// advances it may auto-start the next assigned stage and, once every stage is
// terminal, move the order to READY. The write-off and READY broadcast run
// after commit; their failures never undo the transition.
func (s *Service) transitionStage(ctx context.Context, orgID, orderID, stageID uuid.UUID, t stageTransition) (*StageResult, error) {
	var (
		order  *Order
		result StageResult
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		result = StageResult{}

		var err error
		order, err = s.repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsClosed() {
			return apperror.NewOrderClosed(order.ID, string(order.Status))
		}

		stages, err := s.repo.Stages(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load stages: %w", err)
		}
		idx := findStage(stages, stageID)
		if idx < 0 {
			return apperror.NewNotFound("stage", stageID)
		}

		now := s.now()
		before := stages[idx].Status
		if err := t.apply(&stages[idx], now); err != nil {
			return err
		}
		result.Stage = stages[idx]
		if before == stages[idx].Status {
			// Repeated start of a running stage.
			return nil
		}
		if err := s.repo.UpdateStage(ctx, &stages[idx]); err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		entries := []HistoryEntry{s.stageEntry(ctx, order, t.action, &stages[idx])}

		if t.advance {
			progress := Advance(stages, idx, now)
			if progress.AutoStarted != nil {
				if err := s.repo.UpdateStage(ctx, progress.AutoStarted); err != nil {
					return fmt.Errorf("auto-start stage: %w", err)
				}
				started := *progress.AutoStarted
				result.AutoStarted = &started
				entries = append(entries, s.stageEntry(ctx, order, ActionStageStarted, progress.AutoStarted))
			}

			if progress.AllDone {
				ready, err := s.repo.MarkReady(ctx, orgID, order.ID, now)
				if err != nil {
					return fmt.Errorf("mark order ready: %w", err)
				}
				if ready {
					result.OrderReady = true
					entry := s.historyEntry(ctx, order, ActionStatusChanged)
					entry.FromStatus = statusPtr(order.Status)
					entry.ToStatus = statusPtr(StatusReady)
					entry.Payload = map[string]any{"automatic": true}
					entries = append(entries, entry)
				}
			}
		}

		return s.repo.AppendHistory(ctx, entries...)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)

	if result.AutoStarted != nil && result.AutoStarted.AssigneeID != nil {
		s.notify.User(ctx, orgID, *result.AutoStarted.AssigneeID, notification.Notification{
			Type:    notification.TypeStageStarted,
			Title:   fmt.Sprintf("Order %s: %s", order.Number, result.AutoStarted.Name),
			Message: "Previous stage is finished, your stage has started",
			Payload: map[string]any{"orderId": order.ID, "stageId": result.AutoStarted.ID},
		})
	}

	if result.OrderReady {
		s.onOrderReady(ctx, order, &result)
	}
	return &result, nil
}

// onOrderReady runs the consumption pass and announces the ready order.
func (s *Service) onOrderReady(ctx context.Context, order *Order, result *StageResult) {
	from := order.Status
	order.Status = StatusReady

	report, err := s.materials.WriteOffForOrder(ctx, order.OrgID, order.ID, inventory.TriggerStagesCompleted)
	switch {
	case apperror.HasCode(err, apperror.CodeAlreadyWrittenOff):
		logger.Info(ctx, "order materials already written off", "order_id", order.ID)
	case err != nil:
		logger.Error(ctx, "automatic write-off failed", "order_id", order.ID, "error", err)
	default:
		result.WriteOff = report
		s.recordWriteOff(ctx, order, report)
	}

	s.notify.Org(ctx, order.OrgID, notification.Notification{
		Type:    notification.TypeOrderReady,
		Title:   fmt.Sprintf("Order %s is ready", order.Number),
		Message: fmt.Sprintf("All stages finished, status changed from %s to %s", from.Label(), StatusReady.Label()),
		Payload: map[string]any{"orderId": order.ID, "number": order.Number},
	}, auth.PrivilegedRoles...)
}

// AssignStage sets or clears the technician of a stage.
func (s *Service) AssignStage(ctx context.Context, orgID, orderID, stageID uuid.UUID, assignee *uuid.UUID) (*Stage, error) {
	var (
		order *Order
		stage Stage
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetForUpdate(ctx, orgID, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsClosed() {
			return apperror.NewOrderClosed(order.ID, string(order.Status))
		}

		stages, err := s.repo.Stages(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load stages: %w", err)
		}
		idx := findStage(stages, stageID)
		if idx < 0 {
			return apperror.NewNotFound("stage", stageID)
		}
		if err := stages[idx].Assign(assignee); err != nil {
			return err
		}
		if err := s.repo.UpdateStage(ctx, &stages[idx]); err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		stage = stages[idx]
		return s.repo.AppendHistory(ctx, s.stageEntry(ctx, order, ActionStageAssigned, &stage))
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	if assignee != nil {
		s.notify.User(ctx, orgID, *assignee, notification.Notification{
			Type:    notification.TypeStageAssigned,
			Title:   fmt.Sprintf("Order %s: %s", order.Number, stage.Name),
			Message: "You were assigned to a production stage",
			Payload: map[string]any{"orderId": order.ID, "stageId": stage.ID},
		})
	}
	return &stage, nil
}

func (s *Service) stageEntry(ctx context.Context, order *Order, action HistoryAction, st *Stage) HistoryEntry {
	entry := s.historyEntry(ctx, order, action)
	entry.Payload = map[string]any{
		"stageId":   st.ID,
		"stageName": st.Name,
		"status":    st.Status,
	}
	if st.AssigneeID != nil {
		entry.Payload["assigneeId"] = *st.AssigneeID
	}
	return entry
}
