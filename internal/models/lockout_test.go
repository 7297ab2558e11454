package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockoutStateLocked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	zero := LockoutState{}
	locked, _ := zero.Locked(now)
	assert.False(t, locked, "zero state is never locked")

	until := now.Add(10 * time.Minute)
	state := LockoutState{FailedCount: 5, LockedUntil: &until}

	locked, remaining := state.Locked(now)
	assert.True(t, locked)
	assert.Equal(t, 10*time.Minute, remaining)

	// Exactly at the deadline the lock has lapsed
	locked, remaining = state.Locked(until)
	assert.False(t, locked)
	assert.Zero(t, remaining)

	locked, _ = state.Locked(until.Add(time.Second))
	assert.False(t, locked)
}
