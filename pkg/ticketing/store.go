package ticketing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists ticket types, purchases and discounts.
type Store struct {
	db *sql.DB
}

// NewStore creates a ticketing store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetTicketType returns one ticket type by id.
func (s *Store) GetTicketType(ctx context.Context, id string) (*TicketType, error) {
	var t TicketType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, name, price, quantity_total, quantity_sold,
			sales_start, sales_end
		FROM ticket_types WHERE id = $1`, id).
		Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.QuantityTotal,
			&t.QuantitySold, &t.SalesStart, &t.SalesEnd)
	if err == sql.ErrNoRows {
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket type: %w", err)
	}
	return &t, nil
}

// Sell reserves quantity tickets of a type. The UPDATE only matches while
// the sold count stays within the total, so concurrent sells cannot
// oversell: the losing statement matches zero rows and returns ErrSoldOut.
func (s *Store) Sell(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold + $1
		WHERE id = $2 AND quantity_sold + $1 <= quantity_total`,
		quantity, ticketTypeID)
	if err != nil {
		return fmt.Errorf("sell tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sell tickets: %w", err)
	}
	if n == 0 {
		// Distinguish sold out from unknown id.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM ticket_types WHERE id = $1`, ticketTypeID).Scan(&exists); err != nil {
			return fmt.Errorf("sell tickets: %w", err)
		}
		if exists == 0 {
			return ErrTicketTypeNotFound
		}
		return ErrSoldOut
	}
	return nil
}

// Release returns quantity tickets to the pool, clamping at zero sold.
func (s *Store) Release(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold - $1
		WHERE id = $2 AND quantity_sold >= $1`,
		quantity, ticketTypeID)
	if err != nil {
		return fmt.Errorf("release tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release tickets: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cannot release %d tickets from %s", quantity, ticketTypeID)
	}
	return nil
}

// GetDiscount returns one discount by event and code.
func (s *Store) GetDiscount(ctx context.Context, eventID, code string) (*Discount, error) {
	var d Discount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, code, percentage, amount, valid_from, valid_until,
			max_uses, times_used
		FROM discounts WHERE event_id = $1 AND code = $2`, eventID, code).
		Scan(&d.ID, &d.EventID, &d.Code, &d.Percentage, &d.Amount,
			&d.ValidFrom, &d.ValidUntil, &d.MaxUses, &d.TimesUsed)
	if err == sql.ErrNoRows {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	return &d, nil
}

// RedeemDiscount consumes one use of a discount. The UPDATE re-checks the
// validity window and the use cap, so a concurrently exhausted or expired
// discount fails with ErrDiscountNotValid instead of overshooting.
func (s *Store) RedeemDiscount(ctx context.Context, discountID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discounts
		SET times_used = times_used + 1
		WHERE id = $1 AND valid_from <= $2 AND valid_until >= $2
			AND (max_uses = 0 OR times_used < max_uses)`,
		discountID, now)
	if err != nil {
		return fmt.Errorf("redeem discount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("redeem discount: %w", err)
	}
	if n == 0 {
		return ErrDiscountNotValid
	}
	return nil
}

// RecordPurchase validates and persists a ticket purchase.
func (s *Store) RecordPurchase(ctx context.Context, p *TicketPurchase) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_purchases
			(id, registration_id, ticket_type_id, quantity, unit_price,
			 discount_amount, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.RegistrationID, p.TicketTypeID, p.Quantity, p.UnitPrice,
		p.DiscountAmount, p.TotalPrice, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}
