package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"1", 10_000},
		{"1.25", 12_500},
		{"0.00005", 0},
		{"-2.5", -25_000},
		{".5", 5_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("abc")
	assert.Error(t, err)
}

func TestQuantity_JSON(t *testing.T) {
	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"3.5"`), &q))
	assert.Equal(t, NewQuantityFromFloat64(3.5), q)

	require.NoError(t, json.Unmarshal([]byte(`0.25`), &q))
	assert.Equal(t, "0.2500", q.String())

	out, err := json.Marshal(NewQuantityFromInt(-4))
	require.NoError(t, err)
	assert.Equal(t, "-4.0000", string(out))
}

func TestQuantity_MulIntAndDecimal(t *testing.T) {
	norm := mustQuantity(t, "0.5")
	assert.Equal(t, NewQuantityFromInt(3), norm.MulInt(6))
	assert.True(t, decimal.RequireFromString("0.5").Equal(norm.Decimal()))
}

func TestPercent(t *testing.T) {
	got := Percent(MustMoney("333.33"), decimal.NewFromInt(10))
	assert.Equal(t, "33.33", got.StringFixed(2))
}

func mustQuantity(t *testing.T, s string) Quantity {
	t.Helper()
	q, err := ParseQuantity(s)
	require.NoError(t, err)
	return q
}
