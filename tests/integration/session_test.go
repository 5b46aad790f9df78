package integration

import (
	"context"
	"testing"
	"time"

	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	repo := repositories.NewSessionRepository(testDB.DB)

	t.Run("rotate keeps the row and kills the old token", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "rotate@example.com")
		require.NoError(t, err)

		oldToken, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		created, err := repo.Create(ctx, &models.Session{
			UserID:    user.ID,
			Token:     oldToken,
			ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		newToken, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		rotated, err := repo.Rotate(ctx, created.ID, newToken, time.Hour)
		require.NoError(t, err)

		assert.Equal(t, created.ID, rotated.ID, "rotation keeps the session row")
		require.NotNil(t, rotated.RotatedFrom)
		assert.Equal(t, created.ID, *rotated.RotatedFrom)

		_, err = repo.GetByToken(ctx, oldToken)
		assert.ErrorIs(t, err, models.ErrNotFound, "old token must stop resolving")

		resolved, err := repo.GetByToken(ctx, newToken)
		require.NoError(t, err)
		assert.Equal(t, created.ID, resolved.ID)
	})

	t.Run("expired session does not resolve", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "expired@example.com")
		require.NoError(t, err)

		token, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		_, err = repo.Create(ctx, &models.Session{
			UserID:    user.ID,
			Token:     token,
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		_, err = repo.GetByToken(ctx, token)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("delete expired sweeps only stale rows", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "sweep@example.com")
		require.NoError(t, err)

		liveToken, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		_, err = repo.Create(ctx, &models.Session{
			UserID: user.ID, Token: liveToken, ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		staleToken, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		_, err = repo.Create(ctx, &models.Session{
			UserID: user.ID, Token: staleToken, ExpiresAt: time.Now().Add(-time.Hour),
		})
		require.NoError(t, err)

		deleted, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = repo.GetByToken(ctx, liveToken)
		assert.NoError(t, err)
	})

	t.Run("delete by user revokes every session", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "revokeall@example.com")
		require.NoError(t, err)

		tokens := make([]string, 3)
		for i := range tokens {
			token, err := auth.GenerateSessionToken()
			require.NoError(t, err)
			tokens[i] = token
			_, err = repo.Create(ctx, &models.Session{
				UserID: user.ID, Token: token, ExpiresAt: time.Now().Add(time.Hour),
			})
			require.NoError(t, err)
		}

		deleted, err := repo.DeleteByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		for _, token := range tokens {
			_, err := repo.GetByToken(ctx, token)
			assert.ErrorIs(t, err, models.ErrNotFound)
		}
	})
}
