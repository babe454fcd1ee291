package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/airspace-monitor/pkg/logger"
)

// Service drives the gate: snapshots on an interval and the highlight blink every second
type Service struct {
	gate             *Gate
	snapshotInterval time.Duration
	logger           *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewService creates a rendering service
func NewService(gate *Gate, snapshotInterval time.Duration, log *logger.Logger) *Service {
	if snapshotInterval <= 0 {
		snapshotInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		gate:             gate,
		snapshotInterval: snapshotInterval,
		logger:           log.Named("rendering-service"),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start launches the background loops
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info("Starting rendering service", logger.Duration("snapshot_interval", s.snapshotInterval))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.snapshotLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.blinkLoop()
	}()

	s.started = true
	return nil
}

// Stop cancels the loops and waits for them to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info("Stopping rendering service")
	s.cancel()
	s.wg.Wait()
	s.started = false
	return nil
}

func (s *Service) snapshotLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RecalculateNow()
		}
	}
}

func (s *Service) blinkLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.gate.blinkTick(now)
		}
	}
}

// RecalculateNow builds and applies a snapshot immediately
func (s *Service) RecalculateNow() Snapshot {
	snap := s.gate.BuildSnapshot(s.gate.provider.Aircraft())
	if s.gate.ApplySnapshot(snap) {
		s.logger.Debug("Snapshot applied",
			logger.Int("wanted", len(snap.Callsigns)),
			logger.Bool("restricted", snap.Restricted))
	}
	return snap
}
