package middleware

import (
	"net/http"

	"github.com/eventez/analytics/pkg/contextkeys"
)

// Roles forwarded by the platform gateway.
const (
	RoleAdmin       = "admin"
	RoleOrganizer   = "organizer"
	RoleParticipant = "participant"
)

// Headers set by the gateway after it authenticates the caller. The
// analytics service never sees credentials, only the resolved identity.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Identity is the authenticated caller as resolved by the gateway.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller may query across all organizers.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// IdentityMiddleware extracts the caller identity from gateway headers.
type IdentityMiddleware struct {
	required bool // reject requests without an identity
}

// NewIdentityMiddleware creates identity middleware. When required is true,
// requests without a user ID header are rejected with 401.
func NewIdentityMiddleware(required bool) *IdentityMiddleware {
	return &IdentityMiddleware{required: required}
}

// Handler wraps an HTTP handler with identity extraction
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			if m.required {
				m.unauthorizedResponse(w, "missing caller identity")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		role := r.Header.Get(HeaderUserRole)
		if role == "" {
			role = RoleParticipant
		}

		identity := &Identity{UserID: userID, Role: role}
		ctx := contextkeys.WithIdentity(r.Context(), identity)
		ctx = contextkeys.WithUserID(ctx, userID)
		ctx = contextkeys.WithUserRole(ctx, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *IdentityMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetIdentity extracts the caller identity from a request
func GetIdentity(r *http.Request) *Identity {
	v := r.Context().Value(contextkeys.IdentityKey)
	if v == nil {
		return nil
	}
	identity, ok := v.(*Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireRole creates middleware that restricts a route to one of the
// given roles. An absent identity is rejected outright.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r)
			if identity == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			if !allowed[identity.Role] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"insufficient role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
