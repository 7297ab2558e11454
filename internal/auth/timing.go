package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingGuard pads authentication failures to a minimum elapsed time with
// random jitter, so response latency does not reveal which check failed
// (unknown identity vs wrong password vs locked account).
type TimingGuard struct {
	minimum time.Duration
	jitter  time.Duration
}

// NewTimingGuard creates a guard that pads failures to at least minimum,
// plus up to jitter of random extra delay.
func NewTimingGuard(minimum, jitter time.Duration) *TimingGuard {
	return &TimingGuard{minimum: minimum, jitter: jitter}
}

// Protect pads the elapsed time since start on failure. Successful
// operations return immediately; their latency is dominated by the hashing
// cost already.
func (g *TimingGuard) Protect(start time.Time, success bool) {
	if success || g == nil {
		return
	}

	target := g.minimum + g.randomJitter()
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// randomJitter draws from crypto/rand; timing defenses should not use a
// predictable generator.
func (g *TimingGuard) randomJitter() time.Duration {
	if g.jitter <= 0 {
		return 0
	}

	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(raw[:]) % uint64(g.jitter))
}
