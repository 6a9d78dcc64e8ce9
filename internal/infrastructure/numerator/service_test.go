package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "dentallab/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier keeps one counter per key, like the sequence table.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
	err    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	key := args[0].(string)
	m.values[key]++
	return &mockRow{val: m.values[key]}
}

func TestNext_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.OrderConfig("org-1", 6)

	first, err := svc.Next(ctx, cfg)
	require.NoError(t, err)
	second, err := svc.Next(ctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, "000001", first)
	assert.Equal(t, "000002", second)
	assert.Less(t, first, second)
}

func TestNext_ScopesAreIndependent(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()

	a, err := svc.Next(ctx, corenumerator.OrderConfig("org-a", 4))
	require.NoError(t, err)
	b, err := svc.Next(ctx, corenumerator.OrderConfig("org-b", 4))
	require.NoError(t, err)

	assert.Equal(t, "0001", a)
	assert.Equal(t, "0001", b)
}

func TestNext_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	cfg := corenumerator.OrderConfig("org-1", 6)

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := svc.Next(context.Background(), cfg)
			assert.NoError(t, err)
			mu.Lock()
			seen[num] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestNext_Errors(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection refused")
	svc := New(q)

	_, err := svc.Next(context.Background(), corenumerator.OrderConfig("org-1", 6))
	assert.ErrorContains(t, err, "connection refused")

	_, err = svc.Next(context.Background(), corenumerator.Config{})
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "000123", Format(corenumerator.Config{PadWidth: 6}, 123))
	assert.Equal(t, "1234567", Format(corenumerator.Config{PadWidth: 6}, 1234567))
	assert.Equal(t, "000042", Format(corenumerator.Config{}, 42))
}
