package domain

import "time"

// Session is the authenticated handle for the stat-office protocol.
// Cross-request singleton: at most one valid session exists at a time.
type Session struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt reports whether the session is still usable at t, keeping a
// refresh buffer so a session about to expire is renewed ahead of use.
func (s *Session) ValidAt(t time.Time, buffer time.Duration) bool {
	if s == nil || s.Handle == "" {
		return false
	}
	return t.Add(buffer).Before(s.ExpiresAt)
}
