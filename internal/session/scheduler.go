package session

import (
	"sync"
	"time"
)

// Scheduler runs one delayed callback per key. Scheduling a key again
// replaces the pending callback.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*scheduled
	nextGen uint64
	stopped bool
}

type scheduled struct {
	gen   uint64
	timer *time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*scheduled)}
}

// Schedule arranges for fn to run after d unless the key is cancelled first.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.nextGen++
	gen := s.nextGen
	s.timers[key] = &scheduled{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			s.mu.Lock()
			cur, ok := s.timers[key]
			if !ok || cur.gen != gen {
				s.mu.Unlock()
				return
			}
			delete(s.timers, key)
			s.mu.Unlock()
			fn()
		}),
	}
}

// Cancel stops the pending callback for key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[key]
	if !ok {
		return false
	}
	cur.timer.Stop()
	delete(s.timers, key)
	return true
}

// Pending returns the number of callbacks not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels everything and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, cur := range s.timers {
		cur.timer.Stop()
		delete(s.timers, key)
	}
}
