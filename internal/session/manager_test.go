package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsInvalidURL(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path", "https://"} {
		_, err := m.Open(context.Background(), Request{URL: raw, RequesterID: requester}, &fakeSurface{})
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
	assert.Equal(t, 0, m.Len())
}

func TestOpenRejectsWhenBusy(t *testing.T) {
	m := newTestManager(&fakeJobs{}, func(o *Options) { o.MaxActiveSessions = 1 })
	openSession(t, m)
	assert.True(t, m.IsBusy())

	_, err := m.Open(context.Background(), Request{URL: "https://example.com/w", RequesterID: requester}, &fakeSurface{})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestOpenReleasesSessionWhenRenderFails(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	_, err := m.Open(context.Background(), Request{URL: "https://example.com/v", RequesterID: requester}, &fakeSurface{err: errBoom})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.scheduler.Pending())
}

func TestDispatchChecksRequester(t *testing.T) {
	jobs := &fakeJobs{createID: "42"}
	m := newTestManager(jobs)
	s, surface := openSession(t, m)
	stranger := &fakeActor{id: "user-2"}

	err := m.Dispatch(context.Background(), s.ID, ActionVideo, stranger)
	assert.ErrorIs(t, err, ErrNotRequester)
	require.Len(t, stranger.Notes(), 1)
	assert.Equal(t, 1, surface.Count())
	p, _ := s.Phase()
	assert.Equal(t, PhaseAwaitingFormat, p)
}

func TestDispatchUnknownSessionAndAction(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	actor := &fakeActor{id: requester}

	assert.ErrorIs(t, m.Dispatch(context.Background(), "nope", ActionVideo, actor), ErrSessionNotFound)
	require.Len(t, actor.Notes(), 1)
	assert.Contains(t, actor.Notes()[0], "no longer active")

	s, _ := openSession(t, m)
	assert.ErrorIs(t, m.Dispatch(context.Background(), s.ID, Action("bogus"), actor), ErrUnknownAction)
}

func TestDispatchDeleteBeforeSuccess(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	s, _ := openSession(t, m)

	err := m.Dispatch(context.Background(), s.ID, ActionDelete, &fakeActor{id: requester})
	assert.ErrorIs(t, err, ErrNotActionable)
}

func TestSnapshots(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	first, _ := openSession(t, m)
	time.Sleep(time.Millisecond)
	second, _ := openSession(t, m)

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, first.ID, snaps[0].ID)
	assert.Equal(t, second.ID, snaps[1].ID)
	assert.Equal(t, "awaiting_format", snaps[0].Phase)
	assert.Equal(t, requester, snaps[0].RequesterID)
}

func TestLinkBuilder(t *testing.T) {
	tests := []struct {
		api, public, path, want string
	}{
		{"http://h", "", "/files/x.mp4", "http://h/files/x.mp4"},
		{"http://h", "http://pub", "/files/x.mp4", "http://pub/files/x.mp4"},
		{"http://h/", "", "files/x.mp4", "http://h/files/x.mp4"},
		{"http://h", "  ", "/files/x.mp4", "http://h/files/x.mp4"},
		{"http://h", "", "https://cdn.example.com/x.mp4", "https://cdn.example.com/x.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewLinkBuilder(tt.api, tt.public).Download(tt.path))
	}
}

func TestSchedulerReplaceAndCancel(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Int32

	s.Schedule("a", time.Hour, func() { fired.Add(100) })
	s.Schedule("a", 5*time.Millisecond, func() { fired.Add(1) })
	s.Schedule("b", 5*time.Millisecond, func() { fired.Add(10) })
	assert.True(t, s.Cancel("b"))
	assert.False(t, s.Cancel("missing"))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler()
	var fired atomic.Bool
	s.Schedule("a", 5*time.Millisecond, func() { fired.Store(true) })
	s.Stop()
	s.Schedule("b", time.Millisecond, func() { fired.Store(true) })

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestOpenAfterShutdown(t *testing.T) {
	m := newTestManager(&fakeJobs{})
	m.Shutdown()

	_, err := m.Open(context.Background(), Request{URL: "https://example.com/v", RequesterID: requester}, &fakeSurface{})
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Equal(t, 0, m.Len())
}
