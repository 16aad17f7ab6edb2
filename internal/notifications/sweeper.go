package notifications

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sweeper runs Sweep on a fixed interval until stopped.
type Sweeper struct {
	svc      *Service
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    Report
	lastRun time.Time
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Start launches the sweep loop. It is a no-op when the interval is not
// positive or the loop is already running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)
	log.Printf("🧹 Notification sweep every %s", s.interval)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("⚠️ Notification sweep failed: %v", err)
			}
		}
	}
}

// RunOnce sweeps immediately and records the report.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	report, err := s.svc.Sweep(ctx)
	if err != nil {
		return report, err
	}

	s.mu.Lock()
	s.last = report
	s.lastRun = time.Now()
	s.mu.Unlock()

	if report.Total() > 0 {
		log.Printf("🧹 Notification sweep removed %d (superseded=%d orphaned=%d stale_accepted=%d)",
			report.Total(), report.Superseded, report.Orphaned, report.StaleAccepted)
	}
	return report, nil
}

// Last returns the most recent report and when it ran.
func (s *Sweeper) Last() (Report, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastRun
}
