package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	pkglogger "github.com/ignitionhq/ignition/pkg/logger"
)

// SessionStore is the persistence surface the session service needs.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	Rotate(ctx context.Context, sessionID uuid.UUID, newToken string, ttl time.Duration) (*models.Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// TosMarker marks ToS acceptance on the user row.
type TosMarker interface {
	MarkTosAccepted(ctx context.Context, userID uuid.UUID, version string) error
}

// SessionService issues, rotates, and destroys opaque sessions.
type SessionService struct {
	sessions SessionStore
	users    TosMarker
	audit    *AuditService
	logger   *slog.Logger
	ttl      time.Duration
}

func NewSessionService(sessions SessionStore, users TosMarker, audit *AuditService, logger *slog.Logger, ttl time.Duration) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		audit:    audit,
		logger:   logger,
		ttl:      ttl,
	}
}

// Issue creates a new session for the user with the configured TTL.
func (s *SessionService) Issue(ctx context.Context, userID uuid.UUID, userAgent, ipAddress *string) (*models.Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session, err := s.sessions.Create(ctx, &models.Session{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.ttl),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session issued",
		slog.String("user_id", userID.String()),
		pkglogger.TokenAttr("token", session.Token))

	s.audit.Event(ctx, models.AuditEventTypeSessionCreated, &userID,
		models.AuditResourceTypeSession, session.ID.String(),
		"create", true, ipAddress, userAgent, nil)

	return session, nil
}

// Rotate replaces the session token after a privilege change. The row id and
// owner are preserved; the old token stops resolving immediately.
func (s *SessionService) Rotate(ctx context.Context, sessionID, userID uuid.UUID) (*models.Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session, err := s.sessions.Rotate(ctx, sessionID, token, s.ttl)
	if err != nil {
		return nil, err
	}

	s.audit.Event(ctx, models.AuditEventTypeSessionRotated, &userID,
		models.AuditResourceTypeSession, session.ID.String(),
		"rotate", true, nil, nil, nil)

	return session, nil
}

// Logout deletes the session row. A missing row is not an error; the cookie
// is cleared either way.
func (s *SessionService) Logout(ctx context.Context, sessionID, userID uuid.UUID, ipAddress, userAgent *string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	s.audit.Event(ctx, models.AuditEventTypeLogout, &userID,
		models.AuditResourceTypeSession, sessionID.String(),
		"delete", true, ipAddress, userAgent, nil)

	return nil
}

// AcceptTos records ToS acceptance and rotates the session: acceptance is a
// privilege elevation, so the token must change.
func (s *SessionService) AcceptTos(ctx context.Context, sessionID, userID uuid.UUID, version string) (*models.Session, error) {
	if err := s.users.MarkTosAccepted(ctx, userID, version); err != nil {
		return nil, err
	}

	s.audit.Event(ctx, models.AuditEventTypeTosAccepted, &userID,
		models.AuditResourceTypeUser, userID.String(),
		"accept", true, nil, nil, models.AuditMetadata{"version": version})

	return s.Rotate(ctx, sessionID, userID)
}
