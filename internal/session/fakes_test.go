package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dlerbot/internal/task"
)

type fakeSurface struct {
	mu    sync.Mutex
	views []View
	err   error
}

func (f *fakeSurface) Render(_ context.Context, v View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, v)
	return f.err
}

func (f *fakeSurface) Last() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.views) == 0 {
		return View{}
	}
	return f.views[len(f.views)-1]
}

func (f *fakeSurface) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

// CountTitled counts rendered views whose embed title contains s.
func (f *fakeSurface) CountTitled(s string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.views {
		if v.Embed != nil && strings.Contains(v.Embed.Title, s) {
			n++
		}
	}
	return n
}

type fakeActor struct {
	id    string
	mu    sync.Mutex
	notes []string
}

func (a *fakeActor) UserID() string { return a.id }

func (a *fakeActor) Notify(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notes = append(a.notes, text)
	return nil
}

func (a *fakeActor) Notes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.notes...)
}

type fakeJobs struct {
	mu          sync.Mutex
	createID    string
	createErr   error
	createCalls int
	statuses    []*task.Job
	statusErr   error
	statusCalls int
	deleteErr   error
	deleteCalls int
	// deleteGate, when set, holds DeleteJob until closed.
	deleteGate    chan struct{}
	deleteEntered chan struct{}
}

func (f *fakeJobs) CreateJob(_ context.Context, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createID, f.createErr
}

func (f *fakeJobs) GetStatus(ctx context.Context, jobID string) (*task.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if len(f.statuses) == 0 {
		return &task.Job{ID: jobID, Status: task.StatusPending}, nil
	}
	job := *f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	job.ID = jobID
	return &job, nil
}

func (f *fakeJobs) DeleteJob(_ context.Context, _ string) error {
	f.mu.Lock()
	f.deleteCalls++
	gate, entered, err := f.deleteGate, f.deleteEntered, f.deleteErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeJobs) calls() (create, status, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.statusCalls, f.deleteCalls
}

const requester = "user-1"

var errBoom = errors.New("boom")

func successJob() *task.Job {
	return &task.Job{Status: task.StatusSuccess, ResultPath: "/f/42.mp4", ResultName: "clip.mp4"}
}

func newTestManager(jobs *fakeJobs, mutate ...func(*Options)) *Manager {
	opts := Options{
		Jobs:             jobs,
		APIBaseURL:       "http://h",
		PollInterval:     time.Millisecond,
		SelectionTimeout: time.Minute,
		ActionTimeout:    time.Minute,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return NewManager(opts)
}

func openSession(t *testing.T, m *Manager) (*Session, *fakeSurface) {
	t.Helper()
	surface := &fakeSurface{}
	s, err := m.Open(context.Background(), Request{URL: "https://example.com/v", RequesterID: requester}, surface)
	require.NoError(t, err)
	return s, surface
}

func waitPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		p, _ := s.Phase()
		return p == want
	}, 2*time.Second, time.Millisecond)
}

// readyForActions drives a session to Terminal(success).
func readyForActions(t *testing.T, m *Manager) (*Session, *fakeSurface) {
	t.Helper()
	s, surface := openSession(t, m)
	require.NoError(t, s.Choose(context.Background(), false))
	waitPhase(t, s, PhaseTerminal)
	_, res := s.Phase()
	require.Equal(t, ResultSuccess, res)
	return s, surface
}
