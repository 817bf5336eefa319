package ticketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTicketTypeRemaining(t *testing.T) {
	tt := &TicketType{QuantityTotal: 100, QuantitySold: 60}
	assert.Equal(t, 40, tt.Remaining())

	tt.QuantitySold = 100
	assert.Equal(t, 0, tt.Remaining())

	// defensive clamp when data is inconsistent
	tt.QuantitySold = 110
	assert.Equal(t, 0, tt.Remaining())
}

func TestTicketTypeOnSale(t *testing.T) {
	tt := &TicketType{SalesStart: ts(2024, 3, 1), SalesEnd: ts(2024, 3, 31)}

	assert.False(t, tt.OnSale(ts(2024, 2, 28)))
	assert.True(t, tt.OnSale(ts(2024, 3, 1)))
	assert.True(t, tt.OnSale(ts(2024, 3, 15)))
	assert.True(t, tt.OnSale(ts(2024, 3, 31)))
	assert.False(t, tt.OnSale(ts(2024, 4, 1)))
}

func TestDiscountIsValid(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		now      time.Time
		valid    bool
	}{
		{
			name: "inside window unlimited uses",
			discount: Discount{ValidFrom: ts(2024, 3, 1), ValidUntil: ts(2024, 3, 31),
				MaxUses: 0, TimesUsed: 900},
			now:   ts(2024, 3, 15),
			valid: true,
		},
		{
			name: "inside window uses remain",
			discount: Discount{ValidFrom: ts(2024, 3, 1), ValidUntil: ts(2024, 3, 31),
				MaxUses: 5, TimesUsed: 4},
			now:   ts(2024, 3, 15),
			valid: true,
		},
		{
			name: "inside window but exhausted",
			discount: Discount{ValidFrom: ts(2024, 3, 1), ValidUntil: ts(2024, 3, 31),
				MaxUses: 5, TimesUsed: 5},
			now:   ts(2024, 3, 15),
			valid: false,
		},
		{
			name: "before window",
			discount: Discount{ValidFrom: ts(2024, 3, 1), ValidUntil: ts(2024, 3, 31),
				MaxUses: 5, TimesUsed: 0},
			now:   ts(2024, 2, 28),
			valid: false,
		},
		{
			name: "after window",
			discount: Discount{ValidFrom: ts(2024, 3, 1), ValidUntil: ts(2024, 3, 31),
				MaxUses: 5, TimesUsed: 0},
			now:   ts(2024, 4, 1),
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.discount.IsValid(tt.now))
		})
	}
}

func TestDiscountApply(t *testing.T) {
	pct := &Discount{Percentage: 10}
	assert.InDelta(t, 900.0, pct.Apply(1000), 0.001)

	fixed := &Discount{Amount: 250}
	assert.InDelta(t, 750.0, fixed.Apply(1000), 0.001)

	// never below zero
	big := &Discount{Amount: 2000}
	assert.Equal(t, 0.0, big.Apply(1000))
}

func TestTicketPurchaseValidate(t *testing.T) {
	p := &TicketPurchase{Quantity: 3, UnitPrice: 2000, DiscountAmount: 500, TotalPrice: 5500}
	assert.NoError(t, p.Validate())

	p.TotalPrice = 6000
	assert.Error(t, p.Validate())

	p = &TicketPurchase{Quantity: 0, UnitPrice: 2000, TotalPrice: 0}
	assert.Error(t, p.Validate())

	p = &TicketPurchase{Quantity: 1, UnitPrice: 2000, DiscountAmount: -1, TotalPrice: 2001}
	assert.Error(t, p.Validate())
}
