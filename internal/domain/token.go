package domain

import "time"

// Token is a scoped Keystone bearer token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token is usable at now, treating it as
// expired skew early.
func (t Token) ValidAt(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Add(skew).Before(t.ExpiresAt)
}
