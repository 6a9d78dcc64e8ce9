package orders

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"dentallab/internal/core/apperror"
)

// StageStatus is the lifecycle status of a production stage.
type StageStatus string

const (
	StagePending    StageStatus = "PENDING"
	StageInProgress StageStatus = "IN_PROGRESS"
	StageCompleted  StageStatus = "COMPLETED"
	StageSkipped    StageStatus = "SKIPPED"
)

// IsTerminal reports whether no further transition is possible.
func (s StageStatus) IsTerminal() bool {
	return s == StageCompleted || s == StageSkipped
}

// Stage is one step of an order's fixed production pipeline.
type Stage struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	OrderID     uuid.UUID   `db:"order_id" json:"orderId"`
	Name        string      `db:"name" json:"name"`
	Position    int         `db:"position" json:"position"`
	AssigneeID  *uuid.UUID  `db:"assignee_id" json:"assigneeId,omitempty"`
	Status      StageStatus `db:"status" json:"status"`
	StartedAt   *time.Time  `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
}

func terminalError(s *Stage) error {
	return apperror.NewBusinessRule(apperror.CodeStageTerminal, "Stage is already finished").
		WithDetail("stage_id", s.ID).
		WithDetail("status", s.Status)
}

// Start moves the stage to IN_PROGRESS. Starting a running stage is a no-op
// and never moves its start time.
func (s *Stage) Start(now time.Time) error {
	if s.Status.IsTerminal() {
		return terminalError(s)
	}
	s.Status = StageInProgress
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	return nil
}

// Complete finishes the stage. A pending stage is started and finished at once.
func (s *Stage) Complete(now time.Time) error {
	if s.Status.IsTerminal() {
		return terminalError(s)
	}
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	s.Status = StageCompleted
	s.CompletedAt = &now
	return nil
}

// Skip marks the stage as not needed for this order.
func (s *Stage) Skip(now time.Time) error {
	if s.Status.IsTerminal() {
		return terminalError(s)
	}
	s.Status = StageSkipped
	s.CompletedAt = &now
	return nil
}

// Assign sets or clears the technician of a stage that has not finished yet.
func (s *Stage) Assign(assignee *uuid.UUID) error {
	if s.Status.IsTerminal() {
		return terminalError(s)
	}
	s.AssigneeID = assignee
	return nil
}

// SortStages orders stages by pipeline position.
func SortStages(stages []Stage) {
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })
}

// AllTerminal reports whether every stage is completed or skipped.
// An order without stages is never considered done.
func AllTerminal(stages []Stage) bool {
	if len(stages) == 0 {
		return false
	}
	for _, s := range stages {
		if !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// CurrentStage is the first non-terminal stage by position, or nil when all are done.
func CurrentStage(stages []Stage) *Stage {
	var current *Stage
	for i := range stages {
		if stages[i].Status.IsTerminal() {
			continue
		}
		if current == nil || stages[i].Position < current.Position {
			current = &stages[i]
		}
	}
	return current
}

// Progress is what the pipeline does after a stage reaches a terminal status.
type Progress struct {
	// AutoStarted is the following pending stage that had an assignee and was started.
	AutoStarted *Stage
	// AllDone is set when every stage is terminal.
	AllDone bool
}

// Advance evaluates the pipeline after stages[idx] turned terminal.
// The first PENDING stage positioned after it is started when it has an assignee.
func Advance(stages []Stage, idx int, now time.Time) Progress {
	var p Progress
	finished := stages[idx]

	var next *Stage
	for i := range stages {
		s := &stages[i]
		if s.Position <= finished.Position || s.Status != StagePending {
			continue
		}
		if next == nil || s.Position < next.Position {
			next = s
		}
	}
	if next != nil && next.AssigneeID != nil {
		// Pending is never terminal, so Start cannot fail here.
		_ = next.Start(now)
		p.AutoStarted = next
	}

	p.AllDone = AllTerminal(stages)
	return p
}

// NewStages instantiates the pipeline of a new order from a template.
func NewStages(orderID uuid.UUID, template []StageTemplate, newID func() uuid.UUID) []Stage {
	if len(template) == 0 {
		template = DefaultStageTemplate
	}
	tpl := append([]StageTemplate(nil), template...)
	sort.SliceStable(tpl, func(i, j int) bool { return tpl[i].Position < tpl[j].Position })

	stages := make([]Stage, len(tpl))
	for i, t := range tpl {
		stages[i] = Stage{
			ID:       newID(),
			OrderID:  orderID,
			Name:     t.Name,
			Position: i + 1,
			Status:   StagePending,
		}
	}
	return stages
}

// findStage returns the index of the stage with id, or -1.
func findStage(stages []Stage, id uuid.UUID) int {
	for i := range stages {
		if stages[i].ID == id {
			return i
		}
	}
	return -1
}
