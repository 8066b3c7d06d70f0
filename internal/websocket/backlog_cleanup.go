package websocket

import (
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = 5 * time.Minute

// BacklogCleanupService periodically drops the stored events of finished or
// abandoned requests
type BacklogCleanupService struct {
	hub      *Hub
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewBacklogCleanupService creates a new cleanup service
func NewBacklogCleanupService(hub *Hub, interval time.Duration, logger *zap.Logger) *BacklogCleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &BacklogCleanupService{
		hub:      hub,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *BacklogCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Progress backlog cleanup started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *BacklogCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Progress backlog cleanup stopped")
}

func (s *BacklogCleanupService) cleanupLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *BacklogCleanupService) runCleanup() {
	if pruned := s.hub.PruneBacklog(); pruned > 0 {
		s.logger.Info("Pruned progress backlog", zap.Int("requests", pruned))
	}
}
