// Package worker runs the background jobs of the reconciler under one
// start/stop lifecycle.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by StartAll on a running manager
var ErrAlreadyRunning = errors.New("workers already running")

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Manager manages the lifecycle of a set of workers
type Manager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
}

// NewManager creates a new worker manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Register adds a worker to be managed. Workers registered after StartAll
// are not started until the next StartAll.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Debug("Worker registered",
		zap.String("worker", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker. If one fails to start, the
// ones already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)

	for i, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			cancel()
			for _, started := range m.workers[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("start worker %s: %w", w.Name(), err)
		}
		m.logger.Info("Worker started", zap.String("worker", w.Name()))
	}

	m.cancel = cancel
	m.running = true
	return nil
}

// StopAll cancels the shared context and stops workers in reverse order
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.cancel()

	var errs []error
	for i := len(m.workers) - 1; i >= 0; i-- {
		w := m.workers[i]
		if err := w.Stop(); err != nil {
			m.logger.Error("Failed to stop worker", zap.String("worker", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop worker %s: %w", w.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker", w.Name()))
	}

	return errors.Join(errs...)
}

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// IsRunning returns whether workers are running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
