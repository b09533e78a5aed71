package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"dlerbot/internal/task"
)

// Surface is the editable message a session is bound to. The first Render
// displays the message; later calls replace it entirely.
type Surface interface {
	Render(ctx context.Context, v View) error
}

// Actor is the user behind a control activation.
type Actor interface {
	UserID() string
	// Notify shows text to the actor only.
	Notify(ctx context.Context, text string) error
}

type Phase int

const (
	PhaseAwaitingFormat Phase = iota
	PhasePolling
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingFormat:
		return "awaiting_format"
	case PhasePolling:
		return "polling"
	default:
		return "terminal"
	}
}

type Result string

const (
	ResultNone     Result = ""
	ResultSuccess  Result = "success"
	ResultFailure  Result = "failure"
	ResultError    Result = "error"
	ResultTimedOut Result = "timed_out"
)

const renderTimeout = 10 * time.Second

// Session binds one user request to one message and at most one job.
type Session struct {
	ID          string
	RequesterID string
	SourceURL   string
	CreatedAt   time.Time

	m       *Manager
	surface Surface

	// mu serialises every phase change and message mutation.
	mu          sync.Mutex
	phase       Phase
	result      Result
	job         *task.Job
	downloadURL string
	expiresAt   time.Time
	expired     bool
	final       bool
	view        View

	// claimed is the single-writer guard shared by both delete paths.
	claimed atomic.Bool
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	SourceURL   string    `json:"source_url"`
	Phase       string    `json:"phase"`
	Result      Result    `json:"result,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	AudioOnly   bool      `json:"audio_only"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.ID,
		RequesterID: s.RequesterID,
		SourceURL:   s.SourceURL,
		Phase:       s.phase.String(),
		Result:      s.result,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.expiresAt,
	}
	if s.job != nil {
		snap.TaskID = s.job.ID
		snap.AudioOnly = s.job.AudioOnly
	}
	return snap
}

// Phase returns the current phase and result.
func (s *Session) Phase() (Phase, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase, s.result
}

// View returns the last rendered view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.render(ctx, promptView(s.SourceURL)); err != nil {
		return err
	}
	s.m.after(s.ID, s.m.selectionTimeout, s.selectionExpired)
	return nil
}

// Choose fixes the format and starts the job. Only the first call has an
// effect; later ones return ErrAlreadyChosen without touching the message.
func (s *Session) Choose(ctx context.Context, audioOnly bool) error {
	s.mu.Lock()
	if s.phase != PhaseAwaitingFormat {
		s.mu.Unlock()
		return ErrAlreadyChosen
	}
	s.phase = PhasePolling
	s.job = &task.Job{SourceURL: s.SourceURL, AudioOnly: audioOnly, Status: task.StatusPending}
	s.m.scheduler.Cancel(s.ID)
	_ = s.render(ctx, creatingView(s.SourceURL, audioOnly))
	s.mu.Unlock()

	if !s.m.goBackground(s.run) {
		s.fail(ctx, "creating the download task", ErrShuttingDown)
		return ErrShuttingDown
	}
	log.Info().Str("session_id", s.ID).Str("url", s.SourceURL).Bool("audio_only", audioOnly).Msg("format chosen")
	return nil
}

func (s *Session) run(ctx context.Context) {
	s.mu.Lock()
	audioOnly := s.job.AudioOnly
	s.mu.Unlock()

	jobID, err := s.m.jobs.CreateJob(ctx, s.SourceURL, audioOnly)
	if err != nil {
		s.fail(ctx, "creating the download task", err)
		return
	}

	s.mu.Lock()
	s.job.ID = jobID
	_ = s.render(ctx, progressView(jobID, s.SourceURL, audioOnly))
	s.mu.Unlock()
	log.Info().Str("session_id", s.ID).Str("task_id", jobID).Msg("polling job")

	s.m.poller.Run(ctx, jobID, task.Handlers{
		OnSuccess: func(job *task.Job) { s.succeed(ctx, job) },
		OnFailure: func(job *task.Job) { s.failed(ctx, job) },
		OnError:   func(err error) { s.fail(ctx, "checking the task status", err) },
	})
}

func (s *Session) succeed(ctx context.Context, job *task.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePolling {
		return
	}
	s.phase = PhaseTerminal
	s.result = ResultSuccess
	s.mergeJob(job)
	s.downloadURL = s.m.links.Download(job.ResultPath)
	s.expiresAt = time.Now().Add(s.m.actionTimeout)

	_ = s.render(ctx, s.successView(deleteIdle))
	s.m.after(s.ID, s.m.actionTimeout, s.expire)
	log.Info().Str("session_id", s.ID).Str("task_id", s.job.ID).Str("file", s.job.DisplayName()).Msg("download ready")
}

func (s *Session) failed(ctx context.Context, job *task.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePolling {
		return
	}
	s.phase = PhaseTerminal
	s.result = ResultFailure
	s.mergeJob(job)
	_ = s.render(ctx, failureView(s.job.Reason()))
	s.finalize()
	log.Info().Str("session_id", s.ID).Str("task_id", s.job.ID).Err(s.job.Err()).Msg("download failed")
}

func (s *Session) fail(ctx context.Context, stage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePolling {
		return
	}
	s.phase = PhaseTerminal
	s.result = ResultError
	_ = s.render(ctx, errorView(stage, err))
	s.finalize()
	log.Error().Str("session_id", s.ID).Str("stage", stage).Err(err).Msg("session ended with error")
}

func (s *Session) selectionExpired(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseAwaitingFormat {
		return
	}
	s.phase = PhaseTerminal
	s.result = ResultTimedOut
	_ = s.render(ctx, selectionTimeoutView(s.SourceURL))
	s.finalize()
	log.Info().Str("session_id", s.ID).Msg("format selection timed out")
}

func (s *Session) mergeJob(job *task.Job) {
	s.job.ID = job.ID
	s.job.Status = job.Status
	s.job.ResultPath = job.ResultPath
	s.job.ResultName = job.ResultName
	s.job.FailureReason = job.FailureReason
	s.job.CheckedAt = job.CheckedAt
}

func (s *Session) successView(st deleteState) View {
	return successView(s.job.DisplayName(), s.downloadURL, s.SourceURL, s.expiresAt, st)
}

// finalize marks the message as settled. Must hold s.mu.
func (s *Session) finalize() {
	s.final = true
	s.m.scheduler.Cancel(s.ID)
	s.m.forget(s.ID)
}

// render replaces the message. Must hold s.mu. Rendering outlives
// cancellation of ctx so a shutdown still leaves a final message.
func (s *Session) render(ctx context.Context, v View) error {
	v.SessionID = s.ID
	s.view = v
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
	defer cancel()
	if err := s.surface.Render(rctx, v); err != nil {
		log.Warn().Str("session_id", s.ID).Str("phase", s.phase.String()).Err(err).Msg("message update failed")
		return err
	}
	return nil
}
