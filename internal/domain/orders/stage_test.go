package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/core/apperror"
	"dentallab/internal/core/types"
)

func TestStage_Transitions(t *testing.T) {
	now := time.Now()
	s := Stage{ID: uuid.New(), Status: StagePending}

	require.NoError(t, s.Start(now))
	assert.Equal(t, StageInProgress, s.Status)
	require.NoError(t, s.Complete(now.Add(time.Minute)))
	assert.Equal(t, StageCompleted, s.Status)
	assert.Equal(t, now, *s.StartedAt)

	err := s.Skip(now)
	assert.True(t, apperror.HasCode(err, apperror.CodeStageTerminal))
	assert.Equal(t, StageCompleted, s.Status)
}

func TestStage_CompleteFromPendingStampsBoth(t *testing.T) {
	now := time.Now()
	s := Stage{Status: StagePending}
	require.NoError(t, s.Complete(now))
	assert.Equal(t, now, *s.StartedAt)
	assert.Equal(t, now, *s.CompletedAt)
}

func TestCurrentStageAndAdvance(t *testing.T) {
	tech := uuid.New()
	stages := []Stage{
		{Name: "C", Position: 3, Status: StagePending, AssigneeID: &tech},
		{Name: "A", Position: 1, Status: StageCompleted},
		{Name: "B", Position: 2, Status: StageSkipped},
	}
	cur := CurrentStage(stages)
	require.NotNil(t, cur)
	assert.Equal(t, "C", cur.Name)

	p := Advance(stages, 2, time.Now())
	require.NotNil(t, p.AutoStarted)
	assert.Equal(t, "C", p.AutoStarted.Name)
	assert.Equal(t, StageInProgress, stages[0].Status)
	assert.False(t, p.AllDone)

	require.NoError(t, stages[0].Complete(time.Now()))
	assert.Nil(t, CurrentStage(stages))
	assert.True(t, AllTerminal(stages))
	assert.False(t, AllTerminal(nil))
}

func TestNewStages_SortsTemplate(t *testing.T) {
	st := NewStages(uuid.New(), []StageTemplate{{"Second", 20}, {"First", 10}}, uuid.New)
	require.Len(t, st, 2)
	assert.Equal(t, "First", st[0].Name)
	assert.Equal(t, 1, st[0].Position)
	assert.Equal(t, 2, st[1].Position)

	assert.Len(t, NewStages(uuid.New(), nil, uuid.New), 6)
}

func TestLineAmounts(t *testing.T) {
	discount, total := LineAmounts(types.MustMoney("1000"), 2, decimal.Zero)
	assert.True(t, discount.IsZero())
	assert.Equal(t, "2000.00", total.StringFixed(2))

	discount, total = LineAmounts(types.MustMoney("19.99"), 3, decimal.RequireFromString("12.5"))
	assert.Equal(t, "7.50", discount.StringFixed(2)) // 59.97 * 0.125 = 7.49625
	assert.Equal(t, "52.47", total.StringFixed(2))
}

func TestSplitFullName(t *testing.T) {
	assert.Equal(t, PersonName{}, SplitFullName("   "))
	assert.Equal(t, PersonName{LastName: "Smith"}, SplitFullName("Smith"))
	assert.Equal(t, PersonName{LastName: "Smith", FirstName: "Anna"}, SplitFullName("Smith Anna"))
	assert.Equal(t, PersonName{LastName: "Smith", FirstName: "Anna", MiddleName: "Maria"}, SplitFullName("Smith  Anna\tMaria"))
}

func TestValidateTransition(t *testing.T) {
	done := []Stage{{Status: StageCompleted}, {Status: StageSkipped}}
	open := []Stage{{Status: StageCompleted}, {Status: StageInProgress}}

	assert.NoError(t, ValidateTransition(StatusNew, StatusReady, done))
	assert.True(t, apperror.HasCode(ValidateTransition(StatusNew, StatusReady, open), apperror.CodeStagesNotDone))
	assert.True(t, apperror.HasCode(ValidateTransition(StatusCancelled, StatusNew, nil), apperror.CodeInvalidStatusTransition))
	assert.True(t, apperror.HasCode(ValidateTransition(StatusDelivered, StatusReady, done), apperror.CodeInvalidStatusTransition))
	assert.True(t, apperror.HasCode(ValidateTransition(StatusNew, Status("LOST"), nil), apperror.CodeValidation))
	assert.NoError(t, ValidateTransition(StatusDelivered, StatusDelivered, nil))
}
