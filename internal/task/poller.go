package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// StatusSource answers status queries for a job.
type StatusSource interface {
	GetStatus(ctx context.Context, jobID string) (*Job, error)
}

// Handlers receive the outcome of a poll run. Exactly one of them is called.
type Handlers struct {
	OnSuccess func(job *Job)
	OnFailure func(job *Job)
	OnError   func(err error)
}

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeError:
		return "error"
	default:
		return "pending"
	}
}

// Classify maps a status report onto a poll outcome. Unrecognised statuses
// are pending so that newer service versions do not end the loop.
func Classify(job *Job) Outcome {
	switch job.Status {
	case StatusSuccess:
		return OutcomeSuccess
	case StatusFailure:
		return OutcomeFailure
	default:
		return OutcomePending
	}
}

// Poller drives a single job to a terminal state with fixed-interval status
// queries. It never retries: the first query error ends the run.
type Poller struct {
	source      StatusSource
	interval    time.Duration
	maxDuration time.Duration
}

func NewPoller(source StatusSource, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.MaxDuration < 0 {
		opts.MaxDuration = 0
	}
	return &Poller{
		source:      source,
		interval:    opts.Interval,
		maxDuration: opts.MaxDuration,
	}
}

// Run blocks until the job reaches a terminal status, a query fails, the
// maximum duration elapses or ctx is cancelled, then calls one handler.
func (p *Poller) Run(ctx context.Context, jobID string, h Handlers) Outcome {
	if jobID == "" {
		h.fail(ErrEmptyJobID)
		return OutcomeError
	}

	var deadline time.Time
	if p.maxDuration > 0 {
		deadline = time.Now().Add(p.maxDuration)
	}

	// The wait starts when a query returns, so a slow service never gets
	// two queries back to back.
	wait := time.NewTimer(p.interval)
	wait.Stop()
	defer wait.Stop()

	for attempt := 1; ; attempt++ {
		job, err := p.source.GetStatus(ctx, jobID)
		if err != nil {
			h.fail(fmt.Errorf("poll job %s: %w", jobID, err))
			return OutcomeError
		}
		if job == nil {
			h.fail(fmt.Errorf("poll job %s: %w", jobID, ErrNoStatus))
			return OutcomeError
		}

		outcome := Classify(job)
		switch outcome {
		case OutcomeSuccess:
			h.succeed(job)
			return outcome
		case OutcomeFailure:
			h.failed(job)
			return outcome
		}

		log.Debug().Str("task_id", jobID).Str("status", string(job.Status)).Int("attempt", attempt).Msg("job still running")

		if !deadline.IsZero() && !time.Now().Add(p.interval).Before(deadline) {
			h.fail(fmt.Errorf("poll job %s after %s: %w", jobID, p.maxDuration, ErrPollTimeout))
			return OutcomeError
		}

		wait.Reset(p.interval)
		select {
		case <-ctx.Done():
			h.fail(fmt.Errorf("poll job %s: %w", jobID, ctx.Err()))
			return OutcomeError
		case <-wait.C:
		}
	}
}

func (h Handlers) succeed(job *Job) {
	if h.OnSuccess != nil {
		h.OnSuccess(job)
	}
}

func (h Handlers) failed(job *Job) {
	if h.OnFailure != nil {
		h.OnFailure(job)
	}
}

func (h Handlers) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}
