package models

import (
	"time"

	"github.com/google/uuid"
)

// JobState is the terminal-state machine a Job moves through inside the
// extraction pipeline.
type JobState string

const (
	JobEnqueued  JobState = "enqueued"
	JobDequeued  JobState = "dequeued"
	JobLoading   JobState = "loading"
	JobAnalyzing JobState = "analyzing"
	JobPersisting JobState = "persisting"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobRetry     JobState = "retry"
	JobDeadLetter JobState = "dead_letter"
)

// Job is a single extraction request. The pipeline owns a Job
// exclusively from enqueue through to its terminal state; it is never
// shared across workers.
type Job struct {
	JobID      string    `json:"job_id"`
	TrackID    uint64    `json:"track_id"`
	Filepath   string    `json:"filepath"`
	Priority   int32     `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	RetryCount uint8     `json:"retry_count"`
	MaxRetries uint8     `json:"max_retries"`
}

// DefaultMaxRetries matches the control-surface default documented for
// the extraction pipeline.
const DefaultMaxRetries uint8 = 3

// NewJob builds a Job with the default retry budget and a fresh
// correlation ID for tracing a track through logs across retries.
func NewJob(trackID uint64, filepath string, priority int32) Job {
	return Job{
		JobID:      uuid.NewString(),
		TrackID:    trackID,
		Filepath:   filepath,
		Priority:   priority,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// CanRetry reports whether the job has retry budget remaining.
func (j Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// DeadLetter pairs a job with the terminal error that killed it.
type DeadLetter struct {
	Job       Job       `json:"job"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
