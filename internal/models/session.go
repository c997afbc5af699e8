package models

import "time"

// Session is the server-side record behind the portal's session cookie.
// Authorized is only ever set by a successful password check.
type Session struct {
	ID         string    `json:"id"`
	Authorized bool      `json:"authorized"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
