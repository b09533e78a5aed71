package task

import "time"

// Status is the job state reported by the job service. Values other than
// the two terminal ones are kept verbatim and treated as in progress.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// IsTerminal reports whether no further transition can follow.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

const (
	DefaultVideoName     = "video.mp4"
	DefaultAudioName     = "audio.mp3"
	DefaultFailureReason = "unknown error"
)

// Job is one remote download unit tracked by the job service.
type Job struct {
	ID            string    `json:"id"`
	SourceURL     string    `json:"source_url"`
	AudioOnly     bool      `json:"audio_only"`
	Status        Status    `json:"status"`
	ResultPath    string    `json:"result_path,omitempty"`
	ResultName    string    `json:"result_name,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
}

// DisplayName returns the artifact name, falling back to a generic one.
func (j *Job) DisplayName() string {
	if j.ResultName != "" {
		return j.ResultName
	}
	if j.AudioOnly {
		return DefaultAudioName
	}
	return DefaultVideoName
}

// Reason returns the failure text, falling back to a generic one.
func (j *Job) Reason() string {
	if j.FailureReason != "" {
		return j.FailureReason
	}
	return DefaultFailureReason
}

// Err returns a *FailureError for failed jobs and nil otherwise.
func (j *Job) Err() error {
	if j.Status != StatusFailure {
		return nil
	}
	return &FailureError{JobID: j.ID, Reason: j.Reason()}
}

type Options struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

const (
	defaultPollInterval = 3 * time.Second
)
