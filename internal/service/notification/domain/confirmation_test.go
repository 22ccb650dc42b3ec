package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfirmation() *OrderConfirmation {
	return &OrderConfirmation{
		EventID:        "evt-1",
		OrderID:        "o-123",
		CustomerName:   "Ada",
		Email:          "ada@example.com",
		TotalAmount:    "45.00",
		DiscountAmount: "5.00",
		CouponCode:     "SAVE5",
		TransactionID:  "tx-9",
		Items: []ConfirmationItem{
			{Title: "Mug", Quantity: 2, Price: "25.00"},
		},
	}
}

func TestRenderConfirmation(t *testing.T) {
	email, err := RenderConfirmation(sampleConfirmation())
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", email.To)
	assert.Equal(t, "Order confirmation #o-123", email.Subject)
	assert.Contains(t, email.Body, "Hi Ada,")
	assert.Contains(t, email.Body, "2 x Mug @ 25.00")
	assert.Contains(t, email.Body, "Discount (SAVE5): -5.00")
	assert.Contains(t, email.Body, "Total: 45.00")
	assert.Contains(t, email.Body, "Payment reference: tx-9")
}

func TestRenderConfirmation_FreeOrderWithoutDiscount(t *testing.T) {
	c := sampleConfirmation()
	c.DiscountAmount, c.CouponCode, c.TransactionID = "", "", ""
	c.TotalAmount = "0.00"

	email, err := RenderConfirmation(c)
	require.NoError(t, err)
	assert.NotContains(t, email.Body, "Discount")
	assert.NotContains(t, email.Body, "Payment reference")
	assert.Contains(t, email.Body, "Total: 0.00")
}

func TestRenderConfirmation_RejectsMalformed(t *testing.T) {
	c := sampleConfirmation()
	c.Email = "nobody"
	_, err := RenderConfirmation(c)
	assert.True(t, errors.Is(err, ErrMalformedMessage))

	c = sampleConfirmation()
	c.OrderID = ""
	_, err = RenderConfirmation(c)
	assert.True(t, errors.Is(err, ErrMalformedMessage))
}
