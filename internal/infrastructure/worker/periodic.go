package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Periodic calls a task on a fixed interval until stopped
type Periodic struct {
	name     string
	interval time.Duration
	task     func(now time.Time)

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// NewPeriodic creates a periodic worker
func NewPeriodic(name string, interval time.Duration, task func(now time.Time)) *Periodic {
	return &Periodic{name: name, interval: interval, task: task}
}

// Name returns the worker name
func (p *Periodic) Name() string { return p.name }

// Start launches the ticker loop
func (p *Periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("interval must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	p.done = make(chan struct{})

	go p.loop(loopCtx, p.done)
	return nil
}

func (p *Periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.task(now)
		}
	}
}

// Stop cancels the loop and waits for an in-flight task to return
func (p *Periodic) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return nil
	}
	p.stop()
	<-p.done
	p.done = nil
	return nil
}
