package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

func (s *Session) deletable() bool {
	return s.phase == PhaseTerminal && s.result == ResultSuccess && !s.final
}

// RequestDelete removes the artifact on user request. The control is
// disabled before the service is called, so a second press while the first
// is in flight is a no-op returning ErrDeleteInProgress.
func (s *Session) RequestDelete(ctx context.Context, actor Actor) error {
	s.mu.Lock()
	if !s.deletable() {
		s.mu.Unlock()
		return ErrNotActionable
	}
	if !s.claimed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrDeleteInProgress
	}
	jobID := s.job.ID
	name := s.job.DisplayName()
	_ = s.render(ctx, s.successView(deleteBusy))
	s.mu.Unlock()

	err := s.m.jobs.DeleteJob(ctx, jobID)

	s.mu.Lock()
	if err == nil {
		_ = s.render(ctx, deletedView(name))
		s.finalize()
		s.mu.Unlock()
		log.Info().Str("session_id", s.ID).Str("task_id", jobID).Str("user_id", actor.UserID()).Msg("artifact deleted")
		return nil
	}

	log.Warn().Str("session_id", s.ID).Str("task_id", jobID).Err(err).Msg("delete failed")
	if s.expired {
		// the expiry fired while this delete was in flight and stood down
		_ = s.render(ctx, autoDeleteFailedView(name, err))
		s.finalize()
	} else {
		s.claimed.Store(false)
		_ = s.render(ctx, s.successView(deleteRetry))
	}
	s.mu.Unlock()

	if nerr := actor.Notify(ctx, fmt.Sprintf("Could not delete `%s`: %v", name, err)); nerr != nil {
		log.Warn().Str("session_id", s.ID).Err(nerr).Msg("notify requester failed")
	}
	return err
}

// expire runs once when the action timeout elapses. It loses silently to a
// delete that already claimed the session.
func (s *Session) expire(ctx context.Context) {
	s.mu.Lock()
	if !s.deletable() {
		s.mu.Unlock()
		return
	}
	s.expired = true
	if !s.claimed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	jobID := s.job.ID
	name := s.job.DisplayName()
	_ = s.render(ctx, cleaningUpView(name, s.downloadURL, s.SourceURL, s.expiresAt))
	s.mu.Unlock()

	err := s.m.jobs.DeleteJob(ctx, jobID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = s.render(ctx, autoDeleteFailedView(name, err))
		log.Warn().Str("session_id", s.ID).Str("task_id", jobID).Err(err).Msg("auto delete failed")
	} else {
		_ = s.render(ctx, autoDeletedView(name))
		log.Info().Str("session_id", s.ID).Str("task_id", jobID).Msg("artifact auto deleted")
	}
	s.finalize()
}
