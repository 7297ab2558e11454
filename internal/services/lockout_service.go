package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paylode/paylode/internal/kvstore"
	"github.com/paylode/paylode/internal/models"
)

// casRetries bounds the optimistic-concurrency loop. Contention on a single
// identity's counter is low, so a handful of retries is plenty.
const casRetries = 5

// LockoutService tracks consecutive failed logins per identity and locks the
// account once the threshold is crossed. State lives in the shared keyed
// store so every instance behind the load balancer sees the same counters.
type LockoutService struct {
	store        kvstore.Store
	threshold    int
	lockDuration time.Duration
	stateTTL     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store kvstore.Store, threshold int, lockDuration, stateTTL time.Duration, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:        store,
		threshold:    threshold,
		lockDuration: lockDuration,
		stateTTL:     stateTTL,
		logger:       logger,
		now:          time.Now,
	}
}

func lockoutKey(userID string) string {
	return "lockout:" + userID
}

// CheckLocked reports whether the identity is currently locked out and, if
// so, how long until the lock lapses. Store failures surface as
// models.ErrStoreUnavailable so the caller fails closed.
func (s *LockoutService) CheckLocked(ctx context.Context, userID string) (bool, time.Duration, error) {
	state, _, err := s.load(ctx, userID)
	if err != nil {
		return false, 0, err
	}

	locked, remaining := state.Locked(s.now())
	return locked, remaining, nil
}

// RecordFailure increments the failure counter and engages the lock when the
// counter reaches the threshold. Returns the updated state so the caller can
// tell the client how long to back off.
func (s *LockoutService) RecordFailure(ctx context.Context, userID string) (*models.LockoutState, error) {
	var lastErr error

	for attempt := 0; attempt < casRetries; attempt++ {
		state, version, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := s.now()

		// A lapsed lock resets the counter before the new failure counts.
		if state.LockedUntil != nil && !now.Before(*state.LockedUntil) {
			state.FailedCount = 0
			state.LockedUntil = nil
		}

		state.FailedCount++
		if state.FailedCount >= s.threshold && state.LockedUntil == nil {
			until := now.Add(s.lockDuration)
			state.LockedUntil = &until
			s.logger.Warn("account locked after repeated failures",
				slog.String("user_id", userID),
				slog.Int("failed_count", state.FailedCount),
				slog.Time("locked_until", until))
		}

		if err := s.save(ctx, userID, state, version); err != nil {
			if errors.Is(err, kvstore.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return state, nil
	}

	return nil, fmt.Errorf("lockout state contention for user %s: %w", userID, lastErr)
}

// RecordSuccess clears the failure counter. A successful login while locked
// never happens (CheckLocked runs first), so plain delete is safe.
func (s *LockoutService) RecordSuccess(ctx context.Context, userID string) error {
	if err := s.store.Delete(ctx, lockoutKey(userID)); err != nil {
		s.logger.Error("failed to clear lockout state", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}

func (s *LockoutService) load(ctx context.Context, userID string) (*models.LockoutState, int64, error) {
	entry, found, err := s.store.Get(ctx, lockoutKey(userID))
	if err != nil {
		s.logger.Error("lockout store read failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil, 0, models.ErrStoreUnavailable
	}
	if !found {
		return &models.LockoutState{}, 0, nil
	}

	var state models.LockoutState
	if err := json.Unmarshal(entry.Value, &state); err != nil {
		// Corrupt state is treated as absent; the next write replaces it.
		s.logger.Error("corrupt lockout state, resetting", slog.String("user_id", userID), slog.Any("error", err))
		return &models.LockoutState{}, entry.Version, nil
	}

	return &state, entry.Version, nil
}

func (s *LockoutService) save(ctx context.Context, userID string, state *models.LockoutState, version int64) error {
	value, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal lockout state: %w", err)
	}

	err = s.store.CompareAndSwap(ctx, lockoutKey(userID), version, value, s.stateTTL)
	if err != nil {
		if errors.Is(err, kvstore.ErrVersionConflict) {
			return err
		}
		s.logger.Error("lockout store write failed", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}
