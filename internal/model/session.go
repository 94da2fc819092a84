package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionInfo is what a validated session token resolves to.  It is also
// the JSON value kept in the session cache.
type SessionInfo struct {
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session is still usable at now.
func (s SessionInfo) Valid(now time.Time) bool {
	return s.UserID != uuid.Nil && s.ExpiresAt.After(now)
}
