package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/ignitionhq/ignition/internal/repositories"
)

// auditRetentionDays bounds how long audit rows are kept.
const auditRetentionDays = 365

// CleanupManager periodically sweeps expired sessions, stale OAuth handshake
// states, and audit rows past retention. Expiry is enforced at read time; the
// sweep only reclaims storage.
type CleanupManager struct {
	sessions  *repositories.SessionRepository
	states    *repositories.OAuthStateRepository
	auditLogs *repositories.AuditLogRepository
	logger    *slog.Logger
	interval  time.Duration
	stopCh    chan struct{}
}

func NewCleanupManager(
	sessions *repositories.SessionRepository,
	states *repositories.OAuthStateRepository,
	auditLogs *repositories.AuditLogRepository,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:  sessions,
		states:    states,
		auditLogs: auditLogs,
		logger:    logger,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if deleted, err := cm.sessions.DeleteExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired sessions swept", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.states.DeleteExpired(cleanupCtx); err != nil {
		cm.logger.Error("failed to sweep expired oauth states", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired oauth states swept", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.auditLogs.Cleanup(cleanupCtx, auditRetentionDays); err != nil {
		cm.logger.Error("failed to sweep audit rows", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("audit rows past retention swept", slog.Int64("rows_deleted", deleted))
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
