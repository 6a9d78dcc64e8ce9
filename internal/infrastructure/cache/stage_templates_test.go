package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/domain/orders"
)

type countingSource struct {
	calls int
	tpl   []orders.StageTemplate
	// during runs inside a load, before the result is returned.
	during func()
}

func (s *countingSource) StageTemplate(context.Context, uuid.UUID) ([]orders.StageTemplate, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	return s.tpl, nil
}

func TestStageTemplateCache(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{tpl: []orders.StageTemplate{{Name: "Model", Position: 1}}}
	c := NewStageTemplateCache(nil, src)
	org, other := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		tpl, err := c.StageTemplate(ctx, org)
		require.NoError(t, err)
		assert.Equal(t, "Model", tpl[0].Name)
	}
	assert.Equal(t, 1, src.calls)

	// Callers get their own copy.
	tpl, _ := c.StageTemplate(ctx, org)
	tpl[0].Name = "changed"
	tpl, _ = c.StageTemplate(ctx, org)
	assert.Equal(t, "Model", tpl[0].Name)

	_, _ = c.StageTemplate(ctx, other)
	assert.Equal(t, 2, src.calls)

	c.invalidate(org.String())
	_, _ = c.StageTemplate(ctx, org)
	_, _ = c.StageTemplate(ctx, other)
	assert.Equal(t, 3, src.calls)

	c.invalidate("")
	_, _ = c.StageTemplate(ctx, other)
	assert.Equal(t, 4, src.calls)
}

func TestStageTemplateCache_InvalidationDuringLoadIsNotLost(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	src := &countingSource{tpl: []orders.StageTemplate{{Name: "Old", Position: 1}}}
	c := NewStageTemplateCache(nil, src)

	src.during = func() {
		c.invalidate(org.String())
		src.during = nil
	}
	tpl, err := c.StageTemplate(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, "Old", tpl[0].Name)

	src.tpl = []orders.StageTemplate{{Name: "New", Position: 1}}
	tpl, err = c.StageTemplate(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, "New", tpl[0].Name)
	assert.Equal(t, 2, src.calls)

	_, _ = c.StageTemplate(ctx, org)
	assert.Equal(t, 2, src.calls, "a load with no overlapping change is cached")
}

func TestStageTemplateCache_StartWithoutPool(t *testing.T) {
	c := NewStageTemplateCache(nil, &countingSource{})
	c.Start(context.Background())
	c.Stop()
	assert.False(t, c.started)
}
