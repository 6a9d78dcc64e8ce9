package dto

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/core/apperror"
	"dentallab/internal/domain/orders"
)

func TestListOrdersQuery_ToFilter(t *testing.T) {
	client := uuid.New()
	q := ListOrdersQuery{
		Status:   []string{"new,ready", " fitting "},
		ClientID: client.String(),
		Search:   "  Ivanov ",
	}
	f, err := q.ToFilter()
	require.NoError(t, err)
	assert.Equal(t, []orders.Status{orders.StatusNew, orders.StatusReady, orders.StatusFitting}, f.Statuses)
	assert.Equal(t, &client, f.ClientID)
	assert.Equal(t, "Ivanov", f.Search)
	assert.Equal(t, 50, f.Limit)

	_, err = ListOrdersQuery{Status: []string{"LOST"}}.ToFilter()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = ListOrdersQuery{ClientID: "nope"}.ToFilter()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateOrderRequest_Binding(t *testing.T) {
	var req CreateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"patientName": "Ivanov Ivan",
		"items": [{"workItemId": "`+uuid.NewString()+`", "quantity": 2, "manualPrice": "150.00", "discountPercent": "10"}]
	}`), &req))
	require.NoError(t, binding.Validator.ValidateStruct(&req))

	in := req.ToInput()
	require.Len(t, in.Items, 1)
	assert.Equal(t, "150", in.Items[0].ManualPrice.String())
	assert.Equal(t, "10", in.Items[0].DiscountPercent.String())

	assert.Error(t, binding.Validator.ValidateStruct(&CreateOrderRequest{}))
	assert.Error(t, binding.Validator.ValidateStruct(&CreateOrderRequest{
		Items: []OrderItemRequest{{WorkItemID: uuid.New(), Quantity: 0}},
	}))
	assert.Error(t, binding.Validator.ValidateStruct(&CreateOrderRequest{
		Items: []OrderItemRequest{{Quantity: 1}},
	}))
}

func TestUpdateOrderRequest_Binding(t *testing.T) {
	bad := orders.Status("LOST")
	assert.Error(t, binding.Validator.ValidateStruct(&UpdateOrderRequest{Status: &bad}))

	ok := orders.StatusDelivered
	assert.NoError(t, binding.Validator.ValidateStruct(&UpdateOrderRequest{Status: &ok}))
	assert.NoError(t, binding.Validator.ValidateStruct(&UpdateOrderRequest{}))
}

func TestResolvePriceQuery_Parse(t *testing.T) {
	item := uuid.New()
	q := ResolvePriceQuery{WorkItemID: item.String(), ManualPrice: "99.90"}
	require.NoError(t, binding.Validator.ValidateStruct(&q))

	gotItem, client, manual, err := q.Parse()
	require.NoError(t, err)
	assert.Equal(t, item, gotItem)
	assert.Nil(t, client)
	assert.Equal(t, "99.9", manual.String())

	assert.Error(t, binding.Validator.ValidateStruct(&ResolvePriceQuery{WorkItemID: "x"}))
}

func TestAccrueRequest_Binding(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&AccrueRequest{Period: "2025-03"}))
	assert.Error(t, binding.Validator.ValidateStruct(&AccrueRequest{Period: "2025-13"}))
	assert.Error(t, binding.Validator.ValidateStruct(&AccrueRequest{}))
}
