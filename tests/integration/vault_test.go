package integration

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/ignitionhq/ignition/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVaultService(testDB *TestDB) *services.VaultService {
	audit := services.NewAuditService(
		services.NewDBAuditSink(repositories.NewAuditLogRepository(testDB.DB), slog.Default()),
	)
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 0, RandomDelayMs: 0})
	return services.NewVaultService(
		testDB.DB,
		repositories.NewVaultRepository(testDB.DB),
		repositories.NewRecoveryCodeRepository(testDB.DB),
		audit,
		timing,
		slog.Default(),
	)
}

func TestVaultLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	svc := newVaultService(testDB)
	vaultRepo := repositories.NewVaultRepository(testDB.DB)
	device := "test-device"

	t.Run("lock then unlock leaves one event per transition", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "lifecycle@example.com")
		require.NoError(t, err)

		vault, err := svc.EnsureVault(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, vault.Locked())

		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))

		locked, err := svc.Lock(ctx, user.ID, models.LockReasonIdle, &device, false)
		require.NoError(t, err)
		assert.True(t, locked.Locked())
		require.NotNil(t, locked.LockReason)
		assert.Equal(t, models.LockReasonIdle, *locked.LockReason)

		// Locking an already locked vault is a no-op.
		again, err := svc.Lock(ctx, user.ID, models.LockReasonIdle, &device, false)
		require.NoError(t, err)
		assert.Equal(t, locked.LockedAt.Unix(), again.LockedAt.Unix())

		unlocked, err := svc.Unlock(ctx, user.ID, "correct horse battery", &device, nil, false)
		require.NoError(t, err)
		assert.False(t, unlocked.Locked())

		events, err := vaultRepo.ListLockEvents(ctx, vault.ID, 50)
		require.NoError(t, err)
		require.Len(t, events, 2, "one lock event and one unlock event, no more")
		assert.True(t, events[0].Locked)
		assert.False(t, events[1].Locked)
	})

	t.Run("concurrent transitions serialize", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "concurrent@example.com")
		require.NoError(t, err)

		vault, err := svc.EnsureVault(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))

		const workers = 4
		const iterations = 5
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < iterations; j++ {
					if _, err := svc.Lock(ctx, user.ID, models.LockReasonIdle, &device, false); err != nil {
						t.Errorf("concurrent lock: %v", err)
						return
					}
					if _, err := svc.Unlock(ctx, user.ID, "correct horse battery", &device, nil, false); err != nil {
						t.Errorf("concurrent unlock: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()

		// Transitions must have linearized: the event log alternates
		// strictly, starting locked, with exactly one row per transition.
		events, err := vaultRepo.ListLockEvents(ctx, vault.ID, 200)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		for i, event := range events {
			assert.Equal(t, i%2 == 0, event.Locked, "event %d out of order", i)
		}

		current, err := vaultRepo.GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, events[len(events)-1].Locked, current.Locked(),
			"final state must match the last committed transition")
	})

	t.Run("wrong passphrase does not unlock", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "wrongpass@example.com")
		require.NoError(t, err)

		_, err = svc.EnsureVault(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))
		_, err = svc.Lock(ctx, user.ID, models.LockReasonBackgrounded, &device, false)
		require.NoError(t, err)

		_, err = svc.Unlock(ctx, user.ID, "not the passphrase", &device, nil, false)
		assert.ErrorIs(t, err, models.ErrInvalidPassphrase)

		vault, err := vaultRepo.GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, vault.Locked())
	})

	t.Run("logout lock requires a session issued after the lock", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "logout@example.com")
		require.NoError(t, err)

		_, err = svc.EnsureVault(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))

		locked, err := svc.Lock(ctx, user.ID, models.LockReasonLogout, &device, false)
		require.NoError(t, err)

		stale := locked.LockedAt.Add(-time.Minute)
		_, err = svc.Unlock(ctx, user.ID, "correct horse battery", &device, &stale, false)
		assert.ErrorIs(t, err, models.ErrFreshAuthRequired)

		_, err = svc.Unlock(ctx, user.ID, "correct horse battery", &device, nil, false)
		assert.ErrorIs(t, err, models.ErrFreshAuthRequired)

		fresh := locked.LockedAt.Add(time.Minute)
		unlocked, err := svc.Unlock(ctx, user.ID, "correct horse battery", &device, &fresh, false)
		require.NoError(t, err)
		assert.False(t, unlocked.Locked())
	})

	t.Run("force lock needs elevation both ways", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "force@example.com")
		require.NoError(t, err)

		_, err = svc.EnsureVault(ctx, user.ID)
		require.NoError(t, err)
		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))

		_, err = svc.Lock(ctx, user.ID, models.LockReasonForce, &device, false)
		assert.ErrorIs(t, err, models.ErrForbidden)

		_, err = svc.Lock(ctx, user.ID, models.LockReasonForce, &device, true)
		require.NoError(t, err)

		_, err = svc.Unlock(ctx, user.ID, "correct horse battery", &device, nil, false)
		assert.ErrorIs(t, err, models.ErrElevatedLock)

		unlocked, err := svc.Unlock(ctx, user.ID, "correct horse battery", &device, nil, true)
		require.NoError(t, err)
		assert.False(t, unlocked.Locked())
	})
}

func TestRecoveryCodes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	svc := newVaultService(testDB)

	t.Run("reset spends the code exactly once", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "recovery@example.com")
		require.NoError(t, err)

		codes, err := svc.GenerateRecoveryCodes(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, codes, 8)

		err = svc.ResetWithRecoveryCode(ctx, codes[0], "brand new passphrase", nil, nil)
		require.NoError(t, err)

		_, err = svc.Unlock(ctx, user.ID, "brand new passphrase", nil, nil, false)
		require.NoError(t, err)

		// Replaying the spent code must fail.
		err = svc.ResetWithRecoveryCode(ctx, codes[0], "another passphrase", nil, nil)
		assert.ErrorIs(t, err, models.ErrInvalidRecoveryCode)

		// A sibling from the same batch still works.
		err = svc.ResetWithRecoveryCode(ctx, codes[1], "another passphrase", nil, nil)
		require.NoError(t, err)
	})

	t.Run("reset accepts lowercase and padded input", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "normalize@example.com")
		require.NoError(t, err)

		codes, err := svc.GenerateRecoveryCodes(ctx, user.ID)
		require.NoError(t, err)

		sloppy := "  " + codes[0] + " "
		err = svc.ResetWithRecoveryCode(ctx, sloppy, "brand new passphrase", nil, nil)
		require.NoError(t, err)
	})

	t.Run("regenerating revokes the previous batch", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "regen@example.com")
		require.NoError(t, err)

		first, err := svc.GenerateRecoveryCodes(ctx, user.ID)
		require.NoError(t, err)
		_, err = svc.GenerateRecoveryCodes(ctx, user.ID)
		require.NoError(t, err)

		err = svc.ResetWithRecoveryCode(ctx, first[0], "brand new passphrase", nil, nil)
		assert.ErrorIs(t, err, models.ErrInvalidRecoveryCode)
	})

	t.Run("passphrase change revokes outstanding codes", func(t *testing.T) {
		require.NoError(t, testDB.CleanupTables(ctx))
		user, err := SeedUser(ctx, testDB.DB, "revoke@example.com")
		require.NoError(t, err)

		codes, err := svc.GenerateRecoveryCodes(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.ChangePassphrase(ctx, user.ID, "", "correct horse battery"))

		err = svc.ResetWithRecoveryCode(ctx, codes[0], "brand new passphrase", nil, nil)
		assert.ErrorIs(t, err, models.ErrInvalidRecoveryCode)
	})
}
