package auth

import (
	"context"
	"sync"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// SessionPurgeScheduler removes expired sessions at startup and on every tick.
type SessionPurgeScheduler struct {
	service  *Service
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewSessionPurgeScheduler(service *Service, interval time.Duration) *SessionPurgeScheduler {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &SessionPurgeScheduler{
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *SessionPurgeScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("Session purge scheduler started, running every %s", s.interval)
	s.purge(ctx)

	for {
		select {
		case <-ticker.C:
			s.purge(ctx)
		case <-s.stopChan:
			fiberlog.Info("Session purge scheduler stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("Session purge scheduler stopped due to context cancellation")
			return
		}
	}
}

func (s *SessionPurgeScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *SessionPurgeScheduler) purge(ctx context.Context) {
	removed, err := s.service.PurgeExpiredSessions(ctx)
	if err != nil {
		fiberlog.Errorf("Error purging expired sessions: %v", err)
		return
	}
	if removed > 0 {
		fiberlog.Infof("Purged %d expired sessions", removed)
	}
}
