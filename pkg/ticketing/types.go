package ticketing

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSoldOut is returned when a sell would exceed a ticket type's total.
	ErrSoldOut = errors.New("ticket type sold out")
	// ErrTicketTypeNotFound is returned for an unknown ticket type id.
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	// ErrDiscountNotValid is returned when a discount cannot be applied.
	ErrDiscountNotValid = errors.New("discount not valid")
	// ErrDiscountNotFound is returned for an unknown discount code.
	ErrDiscountNotFound = errors.New("discount not found")
)

// TicketType is one sellable ticket tier of an event.
type TicketType struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	QuantityTotal int       `json:"quantity_total"`
	QuantitySold  int       `json:"quantity_sold"`
	SalesStart    time.Time `json:"sales_start"`
	SalesEnd      time.Time `json:"sales_end"`
}

// Remaining is the unsold quantity.
func (t *TicketType) Remaining() int {
	if r := t.QuantityTotal - t.QuantitySold; r > 0 {
		return r
	}
	return 0
}

// OnSale reports whether the sales window is open at the given time.
func (t *TicketType) OnSale(now time.Time) bool {
	return !now.Before(t.SalesStart) && !now.After(t.SalesEnd)
}

// Discount is a percentage or fixed-amount price reduction with a validity
// window and an optional use cap.
type Discount struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	Code       string    `json:"code"`
	Percentage float64   `json:"percentage,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	MaxUses    int       `json:"max_uses"`
	TimesUsed  int       `json:"times_used"`
}

// IsValid reports whether the discount applies at the given time: inside
// the validity window and, when max_uses is set, not exhausted. A zero
// max_uses means unlimited.
func (d *Discount) IsValid(now time.Time) bool {
	if now.Before(d.ValidFrom) || now.After(d.ValidUntil) {
		return false
	}
	return d.MaxUses == 0 || d.TimesUsed < d.MaxUses
}

// Apply reduces a price by the discount. Percentage takes precedence over
// a fixed amount. The result never goes below zero.
func (d *Discount) Apply(price float64) float64 {
	var reduced float64
	if d.Percentage > 0 {
		reduced = price * (1 - d.Percentage/100)
	} else {
		reduced = price - d.Amount
	}
	if reduced < 0 {
		return 0
	}
	return reduced
}

// TicketPurchase records one buy of a ticket type within a registration.
type TicketPurchase struct {
	ID             string    `json:"id"`
	RegistrationID string    `json:"registration_id"`
	TicketTypeID   string    `json:"ticket_type_id"`
	Quantity       int       `json:"quantity"`
	UnitPrice      float64   `json:"unit_price"`
	DiscountAmount float64   `json:"discount_amount"`
	TotalPrice     float64   `json:"total_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the purchase price identity:
// total = unit price x quantity - discount.
func (p *TicketPurchase) Validate() error {
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", p.Quantity)
	}
	if p.DiscountAmount < 0 {
		return fmt.Errorf("discount cannot be negative, got %.2f", p.DiscountAmount)
	}
	expected := p.UnitPrice*float64(p.Quantity) - p.DiscountAmount
	if diff := p.TotalPrice - expected; diff > 0.009 || diff < -0.009 {
		return fmt.Errorf("total price %.2f does not match %.2f x %d - %.2f",
			p.TotalPrice, p.UnitPrice, p.Quantity, p.DiscountAmount)
	}
	return nil
}
