package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
)

// AdminPromoter is the persistence surface for the bootstrap claim.
type AdminPromoter interface {
	CountAdmins(ctx context.Context) (int64, error)
	PromoteAdmin(ctx context.Context, userID uuid.UUID) error
}

// EntitlementGranter assigns named entitlements.
type EntitlementGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, roleName string) error
}

// ClaimService bootstraps the first admin. When the process starts with no
// admin user, a one-shot claim key is generated and logged once; presenting
// it promotes the caller and burns the key for the process lifetime.
type ClaimService struct {
	users  AdminPromoter
	roles  EntitlementGranter
	audit  *AuditService
	logger *slog.Logger

	mu     sync.Mutex
	key    string
	burned bool
}

func NewClaimService(users AdminPromoter, roles EntitlementGranter, audit *AuditService, logger *slog.Logger) *ClaimService {
	return &ClaimService{
		users:  users,
		roles:  roles,
		audit:  audit,
		logger: logger,
	}
}

// Bootstrap generates and logs the claim key when no admin exists yet. Safe
// to call once at startup; with an admin already present it is a no-op.
func (s *ClaimService) Bootstrap(ctx context.Context) error {
	count, err := s.users.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate claim key: %w", err)
	}

	s.mu.Lock()
	s.key = base64.RawURLEncoding.EncodeToString(raw)
	s.mu.Unlock()

	// Deliberately the only place the key appears. It dies with the process.
	s.logger.Warn("no admin user exists; claim key generated",
		slog.String("claim_key", s.key))

	return nil
}

// Claim promotes the presenting user when the key matches. The key is valid
// for exactly one successful claim.
func (s *ClaimService) Claim(ctx context.Context, userID uuid.UUID, key string) error {
	s.mu.Lock()
	active := s.key != "" && !s.burned
	match := active && subtle.ConstantTimeCompare([]byte(s.key), []byte(key)) == 1
	if match {
		s.burned = true
	}
	s.mu.Unlock()

	if !match {
		s.audit.Event(ctx, models.AuditEventTypeAdminClaim, &userID,
			models.AuditResourceTypeUser, userID.String(),
			"claim", false, nil, nil, nil)
		return models.ErrForbidden
	}

	if err := s.users.PromoteAdmin(ctx, userID); err != nil {
		// Promotion failed; allow a retry with the same key.
		s.mu.Lock()
		s.burned = false
		s.mu.Unlock()
		return err
	}
	if err := s.roles.Grant(ctx, userID, models.EntitlementAdminAccess); err != nil {
		s.logger.Error("failed to grant admin entitlement",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
	}

	s.logger.Info("admin claimed", slog.String("user_id", userID.String()))

	s.audit.Event(ctx, models.AuditEventTypeAdminClaim, &userID,
		models.AuditResourceTypeUser, userID.String(),
		"claim", true, nil, nil, nil)

	return nil
}
