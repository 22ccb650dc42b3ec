package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPaid, false},
		{StatusPending, StatusPaid, false},
		{StatusPaid, StatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("SHIPPED")
	assert.Error(t, err)
}

func TestOrder_TransitionTo(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	o := &Order{ID: "o1", Status: StatusPaid}

	require.NoError(t, o.TransitionTo(StatusShipped, now))
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, now, o.UpdatedAt)

	err := o.TransitionTo(StatusCancelled, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestOrder_Subtotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Title: "Mug", Price: decimal.RequireFromString("12.50"), Quantity: 2},
		{Title: "Cap", Price: decimal.RequireFromString("0.99"), Quantity: 3},
	}}
	assert.Equal(t, "27.97", o.Subtotal().StringFixed(2))
}

func TestOrder_VisibleTo(t *testing.T) {
	owned := &Order{UserID: "u1"}
	guest := &Order{}

	assert.True(t, owned.VisibleTo("u1", false))
	assert.False(t, owned.VisibleTo("u2", false))
	assert.False(t, guest.VisibleTo("", false))
	assert.True(t, guest.VisibleTo("", true))
	assert.True(t, guest.IsGuest())
}

func TestShippingInfo_Validate(t *testing.T) {
	valid := ShippingInfo{Name: "Ada", Email: "ada@example.com", Address: "1 Way"}
	assert.NoError(t, valid.Validate())

	noEmail := valid
	noEmail.Email = "ada"
	var validErr *ValidationError
	assert.ErrorAs(t, noEmail.Validate(), &validErr)

	noAddress := valid
	noAddress.Address = "  "
	assert.Error(t, noAddress.Validate())
}

func TestStockError_Message(t *testing.T) {
	err := &StockError{Issues: []StockIssue{
		{Message: "Only 2 of Mug available"},
		{Message: "Cap is out of stock"},
	}}
	assert.Equal(t, "Insufficient stock: Only 2 of Mug available; Cap is out of stock", err.Error())
}

func TestNewOrderConfirmation(t *testing.T) {
	discount := decimal.NewFromInt(5)
	o := &Order{
		ID:             "o1",
		UserID:         "u1",
		Shipping:       ShippingInfo{Name: "Ada", Email: "ada@example.com"},
		TotalAmount:    decimal.NewFromInt(45),
		DiscountAmount: &discount,
		CouponCode:     "SAVE5",
		Items:          []OrderItem{{Title: "Mug", Price: decimal.NewFromInt(50), Quantity: 1}},
	}

	evt := NewOrderConfirmation("evt-1", "trace-1", o)
	assert.Equal(t, "45.00", evt.TotalAmount)
	assert.Equal(t, "5.00", evt.DiscountAmount)
	assert.Equal(t, "Ada", evt.CustomerName)
	require.Len(t, evt.Items, 1)
	assert.Equal(t, "50.00", evt.Items[0].Price)
}
