package models

import "time"

// SessionChain records one logical login session and its refresh-token
// rotation history. Exactly one hash (CurrentTokenHash) is live per chain;
// the history is linear and never branches. Rotated hashes are retained
// solely so that replay of a consumed token can be recognized.
type SessionChain struct {
	ID               string // sessionId
	UserID           string
	CurrentTokenHash string
	RotatedHashes    []string
	Revoked          bool
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the chain has passed its TTL.
func (c *SessionChain) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// WasRotated reports whether hash was already consumed by a prior rotation.
func (c *SessionChain) WasRotated(hash string) bool {
	for _, h := range c.RotatedHashes {
		if h == hash {
			return true
		}
	}
	return false
}
