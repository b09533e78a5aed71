package session

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dlerbot/internal/task"
)

// JobService is the part of the job service client a session needs.
type JobService interface {
	task.StatusSource
	CreateJob(ctx context.Context, sourceURL string, audioOnly bool) (string, error)
	DeleteJob(ctx context.Context, jobID string) error
}

type Options struct {
	Jobs              JobService
	APIBaseURL        string
	PublicBaseURL     string
	PollInterval      time.Duration
	MaxPollDuration   time.Duration
	SelectionTimeout  time.Duration
	ActionTimeout     time.Duration
	MaxActiveSessions int
}

const (
	defaultSelectionTimeout  = 3 * time.Minute
	defaultActionTimeout     = 10 * time.Minute
	defaultMaxActiveSessions = 50
)

// Request is a user-issued download command.
type Request struct {
	URL         string
	RequesterID string
}

// Manager holds the live sessions and the goroutines working for them.
type Manager struct {
	mu               sync.RWMutex
	sessions         map[string]*Session
	jobs             JobService
	poller           *task.Poller
	links            LinkBuilder
	scheduler        *Scheduler
	selectionTimeout time.Duration
	actionTimeout    time.Duration
	maxActive        int
	workersWG        sync.WaitGroup
	baseCtx          context.Context
	// closed is set by Shutdown; no worker starts afterwards.
	closed bool
}

func NewManager(opts Options) *Manager {
	if opts.SelectionTimeout <= 0 {
		opts.SelectionTimeout = defaultSelectionTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.MaxActiveSessions <= 0 {
		opts.MaxActiveSessions = defaultMaxActiveSessions
	}
	return &Manager{
		sessions:         make(map[string]*Session),
		jobs:             opts.Jobs,
		poller:           task.NewPoller(opts.Jobs, task.Options{Interval: opts.PollInterval, MaxDuration: opts.MaxPollDuration}),
		links:            NewLinkBuilder(opts.APIBaseURL, opts.PublicBaseURL),
		scheduler:        NewScheduler(),
		selectionTimeout: opts.SelectionTimeout,
		actionTimeout:    opts.ActionTimeout,
		maxActive:        opts.MaxActiveSessions,
		baseCtx:          context.Background(),
	}
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}

// Open registers a session for req and displays its format prompt on surface.
func (m *Manager) Open(ctx context.Context, req Request, surface Surface) (*Session, error) {
	sourceURL, err := ValidateURL(req.URL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:          uuid.NewString(),
		RequesterID: req.RequesterID,
		SourceURL:   sourceURL,
		CreatedAt:   time.Now(),
		m:           m,
		surface:     surface,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if len(m.sessions) >= m.maxActive {
		m.mu.Unlock()
		log.Warn().Int("active", m.maxActive).Msg("rejecting request: session limit reached")
		return nil, ErrBusy
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if err := s.start(ctx); err != nil {
		m.scheduler.Cancel(s.ID)
		m.forget(s.ID)
		return nil, err
	}
	log.Info().Str("session_id", s.ID).Str("user_id", s.RequesterID).Str("url", sourceURL).Msg("session opened")
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	return s, ok
}

// Dispatch routes a control activation to its session.
func (m *Manager) Dispatch(ctx context.Context, sessionID string, action Action, actor Actor) error {
	s, ok := m.Get(sessionID)
	if !ok {
		m.notify(ctx, actor, "This request is no longer active. Run the command again.")
		return ErrSessionNotFound
	}
	if actor.UserID() != s.RequesterID {
		m.notify(ctx, actor, "Only the person who ran the command can use these buttons.")
		return ErrNotRequester
	}

	switch action {
	case ActionVideo:
		return s.Choose(ctx, false)
	case ActionAudio:
		return s.Choose(ctx, true)
	case ActionDelete:
		return s.RequestDelete(ctx, actor)
	default:
		return ErrUnknownAction
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IsBusy reports whether new sessions are currently rejected.
func (m *Manager) IsBusy() bool {
	return m.Len() >= m.maxActive
}

// Snapshots returns a copy of every live session, oldest first.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(live))
	for _, s := range live {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetBaseContext sets the context background work runs under.
// Intended to be set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

// Shutdown drops pending timers and refuses new sessions and workers.
// Running pollers stop when the base context is cancelled.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.scheduler.Stop()
}

// WaitAll blocks until all background workers finish or the context is done.
// Returns true if all workers finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// goBackground starts fn on the base context. It reports false, without
// starting anything, once Shutdown was called or the base context is done.
func (m *Manager) goBackground(fn func(ctx context.Context)) bool {
	m.mu.Lock()
	ctx := m.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if m.closed || ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	m.workersWG.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.workersWG.Done()
		fn(ctx)
	}()
	return true
}

// after runs fn in a tracked goroutine once d has elapsed, unless the
// session's timer is cancelled or replaced first.
func (m *Manager) after(id string, d time.Duration, fn func(ctx context.Context)) {
	m.scheduler.Schedule(id, d, func() {
		if !m.goBackground(fn) {
			log.Debug().Str("session_id", id).Msg("timer dropped during shutdown")
		}
	})
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context, actor Actor, text string) {
	if err := actor.Notify(ctx, text); err != nil {
		log.Warn().Str("user_id", actor.UserID()).Err(err).Msg("notify failed")
	}
}
