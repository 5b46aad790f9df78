package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ActivityStores are the touch targets.
type SessionToucher interface {
	TouchActivity(ctx context.Context, sessionID uuid.UUID) error
}

type UserToucher interface {
	TouchActivity(ctx context.Context, userID uuid.UUID) error
}

type activityTouch struct {
	sessionID uuid.UUID
	userID    uuid.UUID
}

// ActivityService records last-activity timestamps fire-and-forget on a
// bounded background worker. Touches are at-least-once best effort: a full
// queue drops the touch, and a failed update logs at warn and nothing else.
type ActivityService struct {
	sessions SessionToucher
	users    UserToucher
	logger   *slog.Logger
	queue    chan activityTouch
	done     chan struct{}
}

const activityQueueSize = 1024

func NewActivityService(sessions SessionToucher, users UserToucher, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		sessions: sessions,
		users:    users,
		logger:   logger,
		queue:    make(chan activityTouch, activityQueueSize),
		done:     make(chan struct{}),
	}
}

// Touch enqueues an activity update without blocking the request. Saturation
// drops the touch; the next resolved request will record activity instead.
func (s *ActivityService) Touch(sessionID, userID uuid.UUID) {
	select {
	case s.queue <- activityTouch{sessionID: sessionID, userID: userID}:
	default:
		s.logger.Warn("activity queue saturated, dropping touch",
			slog.String("session_id", sessionID.String()))
	}
}

// Start runs the worker until the context is cancelled.
func (s *ActivityService) Start(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case touch := <-s.queue:
			s.apply(touch)
		case <-ctx.Done():
			return
		}
	}
}

// Stop waits briefly for the worker to drain after its context cancels.
func (s *ActivityService) Stop() {
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
}

func (s *ActivityService) apply(touch activityTouch) {
	// Panics in a touch must not escape the worker goroutine.
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("activity touch panicked", slog.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.sessions.TouchActivity(ctx, touch.sessionID); err != nil {
		s.logger.Warn("failed to touch session activity",
			slog.String("session_id", touch.sessionID.String()),
			slog.Any("error", err))
	}
	if err := s.users.TouchActivity(ctx, touch.userID); err != nil {
		s.logger.Warn("failed to touch user activity",
			slog.String("user_id", touch.userID.String()),
			slog.Any("error", err))
	}
}
