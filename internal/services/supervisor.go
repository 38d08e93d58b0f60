package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"marketplace-portal/pkg/logger"
)

// LivenessTracker is the part of the connection registry the supervisor needs.
type LivenessTracker interface {
	StaleSince(cutoff time.Time) []string
	EvictIfStale(connID string, cutoff time.Time) bool
}

// LivenessSupervisor periodically closes connections that have not shown any
// liveness signal within the staleness window.
type LivenessSupervisor struct {
	cron       *cron.Cron
	tracker    LivenessTracker
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	log        logger.Logger

	mu      sync.Mutex
	running bool
}

func NewLivenessSupervisor(tracker LivenessTracker, interval, staleAfter time.Duration, log logger.Logger) *LivenessSupervisor {
	return &LivenessSupervisor{
		tracker:    tracker,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log,
	}
}

func (s *LivenessSupervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.log.Info("Starting liveness supervisor", "interval", s.interval, "stale_after", s.staleAfter)

	// a stopped cron keeps its entries, so every start gets a fresh schedule
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if ctx.Err() != nil {
			return
		}
		s.Sweep(s.now())
	})
	if err != nil {
		return errors.Wrap(err, "schedule liveness sweep")
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *LivenessSupervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.log.Info("Stopping liveness supervisor")
	<-s.cron.Stop().Done()
	s.running = false
}

// Sweep evicts every connection whose last liveness is older than the
// staleness window at now. Returns the number of evicted connections.
func (s *LivenessSupervisor) Sweep(now time.Time) int {
	cutoff := now.Add(-s.staleAfter)
	evicted := 0
	for _, id := range s.tracker.StaleSince(cutoff) {
		if s.tracker.EvictIfStale(id, cutoff) {
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Info("Evicted stale connections", "count", evicted)
	}
	return evicted
}
