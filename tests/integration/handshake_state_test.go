package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	repo := repositories.NewOAuthStateRepository(testDB.DB)

	t.Run("take consumes exactly once", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		now := time.Now()
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey:     "state-single-use",
			PKCEVerifier: "verifier-1",
			RedirectURI:  "https://app.example.com/done",
			CreatedAt:    now,
			ExpiresAt:    now.Add(10 * time.Minute),
		}))

		state, err := repo.Take(ctx, "state-single-use")
		require.NoError(t, err)
		assert.Equal(t, "verifier-1", state.PKCEVerifier)
		assert.Equal(t, "https://app.example.com/done", state.RedirectURI)

		_, err = repo.Take(ctx, "state-single-use")
		assert.ErrorIs(t, err, models.ErrStateNotFound)
	})

	t.Run("expired state is not takeable", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		now := time.Now()
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey:     "state-expired",
			PKCEVerifier: "verifier-2",
			RedirectURI:  "https://app.example.com/done",
			CreatedAt:    now.Add(-time.Hour),
			ExpiresAt:    now.Add(-50 * time.Minute),
		}))

		_, err := repo.Take(ctx, "state-expired")
		assert.ErrorIs(t, err, models.ErrStateNotFound)
	})

	t.Run("unknown state is indistinguishable from spent", func(t *testing.T) {
		_, err := repo.Take(ctx, "never-issued")
		assert.ErrorIs(t, err, models.ErrStateNotFound)
	})

	t.Run("concurrent takes produce one winner", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		now := time.Now()
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey:     "state-raced",
			PKCEVerifier: "verifier-3",
			RedirectURI:  "https://app.example.com/done",
			CreatedAt:    now,
			ExpiresAt:    now.Add(10 * time.Minute),
		}))

		const attempts = 10
		var wg sync.WaitGroup
		wins := make(chan struct{}, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Take(ctx, "state-raced"); err == nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for range wins {
			won++
		}
		assert.Equal(t, 1, won, "exactly one concurrent take must win")
	})

	t.Run("reissuing a state key supersedes the old row", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		now := time.Now()
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey:     "state-reissued",
			PKCEVerifier: "old-verifier",
			RedirectURI:  "https://app.example.com/a",
			CreatedAt:    now,
			ExpiresAt:    now.Add(10 * time.Minute),
		}))
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey:     "state-reissued",
			PKCEVerifier: "new-verifier",
			RedirectURI:  "https://app.example.com/b",
			CreatedAt:    now,
			ExpiresAt:    now.Add(10 * time.Minute),
		}))

		state, err := repo.Take(ctx, "state-reissued")
		require.NoError(t, err)
		assert.Equal(t, "new-verifier", state.PKCEVerifier)
	})

	t.Run("sweep removes only expired rows", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))

		now := time.Now()
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey: "state-live", PKCEVerifier: "v", RedirectURI: "https://app.example.com",
			CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
		}))
		require.NoError(t, repo.Upsert(ctx, &models.OAuthState{
			StateKey: "state-stale", PKCEVerifier: "v", RedirectURI: "https://app.example.com",
			CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
		}))

		deleted, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = repo.Take(ctx, "state-live")
		assert.NoError(t, err)
	})
}
