package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylode/paylode/internal/models"
)

func TestSessionService_Register(t *testing.T) {
	var captured *models.SessionChain
	repo := &MockSessionChainRepository{
		RegisterFunc: func(ctx context.Context, chain *models.SessionChain) error {
			captured = chain
			return nil
		},
	}
	svc := NewSessionService(repo, testLogger())

	err := svc.Register(context.Background(), "sess-1", "user-1", "hash-1", time.Hour)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "sess-1", captured.ID)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "hash-1", captured.CurrentTokenHash)
	assert.Empty(t, captured.RotatedHashes)
	assert.False(t, captured.Revoked)
	assert.WithinDuration(t, time.Now().Add(time.Hour), captured.ExpiresAt, time.Minute)
}

func TestSessionService_RotatePassesThroughSentinels(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{name: "reuse detected", repoErr: models.ErrTokenReused, wantErr: models.ErrTokenReused},
		{name: "invalid token", repoErr: models.ErrTokenInvalid, wantErr: models.ErrTokenInvalid},
		{name: "store down", repoErr: models.ErrStoreUnavailable, wantErr: models.ErrStoreUnavailable},
		{name: "other errors masked", repoErr: errors.New("pq: deadlock"), wantErr: models.ErrInternalServer},
		{name: "success", repoErr: nil, wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockSessionChainRepository{
				RotateFunc: func(ctx context.Context, sessionID, presentedHash, newHash string) error {
					return tt.repoErr
				},
			}
			svc := NewSessionService(repo, testLogger())

			err := svc.Rotate(context.Background(), "sess-1", "old", "new")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSessionService_RevokeIdempotent(t *testing.T) {
	repo := &MockSessionChainRepository{
		RevokeFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound
		},
	}
	svc := NewSessionService(repo, testLogger())

	assert.NoError(t, svc.Revoke(context.Background(), "gone"), "revoking an unknown session is not an error")
}

func TestSessionService_RevokeAllForUser(t *testing.T) {
	repo := &MockSessionChainRepository{
		RevokeAllForUserFunc: func(ctx context.Context, userID string) (int64, error) {
			return 3, nil
		},
	}
	svc := NewSessionService(repo, testLogger())

	count, err := svc.RevokeAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
