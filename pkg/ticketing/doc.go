// Package ticketing holds the ticket sales invariants the analytics
// pipeline depends on: capacity-checked sells, discount validity and the
// purchase price identity.
//
// Sells and discount redemptions are single conditional UPDATE statements
// so two concurrent buyers cannot oversell a ticket type or overuse a
// capped discount.
package ticketing
