// Package middleware provides HTTP middleware for caller identity and rate limiting.
//
// # Overview
//
// The analytics API sits behind the platform gateway, which authenticates
// callers and forwards their identity as trusted headers. This package turns
// those headers into a typed Identity on the request context and applies
// per-caller rate limits.
//
// # Middleware Components
//
// IdentityMiddleware: gateway header identity
//
//	router.Use(middleware.NewIdentityMiddleware(true).Handler)
//	// Reads X-User-ID and X-User-Role, adds Identity to request context
//
// RateLimitMiddleware: in-memory token bucket rate limiting
//
//	router.Use(middleware.NewRateLimitMiddleware().Handler)
//
// # Rate Limiting
//
// Anonymous (by IP): 100 req/min, 10 burst
// Authenticated (by user ID): 1000 req/min, 50 burst
//
// # Related Packages
//
//   - pkg/contextkeys: Context key definitions
//   - pkg/api: Scope computation from the Identity
package middleware
