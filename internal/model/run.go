package model

import (
	"fmt"
	"time"
)

// Outcome is the reconciliation decision for one record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// RunStatus is the status of a crawl run log.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// CrawlLog is one persisted row per source-crawl invocation.
type CrawlLog struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      RunStatus  `json:"status"`
	Found       int        `json:"events_found"`
	Created     int        `json:"events_created"`
	Updated     int        `json:"events_updated"`
	ErrorLog    string     `json:"error_log,omitempty"`
}

// CrawlResult aggregates the outcome of crawling one source (or enriching
// one event in the hotel lane).
type CrawlResult struct {
	Lane          Lane          `json:"lane"`
	SourceID      string        `json:"source_id"`
	SourceName    string        `json:"source_name"`
	Found         int           `json:"found"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Skipped       int           `json:"skipped"`
	LowConfidence int           `json:"low_confidence"`
	Errors        []string      `json:"errors,omitempty"`
	Failed        bool          `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// Record counts one reconciliation outcome.
func (r *CrawlResult) Record(o Outcome) {
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// AddError appends a formatted entry to the error transcript.
func (r *CrawlResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Written is the number of rows created or updated.
func (r CrawlResult) Written() int { return r.Created + r.Updated }

// Status derives the run log status.
func (r CrawlResult) Status() RunStatus {
	switch {
	case r.Failed:
		return RunFailed
	case len(r.Errors) > 0:
		return RunPartial
	default:
		return RunCompleted
	}
}

// RunSummary rolls up every CrawlResult of one lane run.
type RunSummary struct {
	Lane      Lane          `json:"lane"`
	Sources   int           `json:"sources"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Found     int           `json:"found"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
	Results   []CrawlResult `json:"results,omitempty"`
}

// NewRunSummary returns an empty summary for lane.
func NewRunSummary(lane Lane) *RunSummary {
	return &RunSummary{Lane: lane}
}

// Add folds one source result into the totals.
func (s *RunSummary) Add(r CrawlResult) {
	s.Sources++
	if r.Status() == RunFailed {
		s.Failed++
	} else {
		s.Succeeded++
	}
	s.Found += r.Found
	s.Created += r.Created
	s.Updated += r.Updated
	s.Skipped += r.Skipped
	s.Errors += len(r.Errors)
	s.Results = append(s.Results, r)
}

// AllFailed reports whether at least one source ran and every one failed.
func (s *RunSummary) AllFailed() bool {
	return s.Sources > 0 && s.Failed == s.Sources
}

// TaskStatus is the scheduler state of a lane. A lane moves from pending to
// running to ok or error, and back to pending until its next run.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskOK      TaskStatus = "ok"
	TaskError   TaskStatus = "error"
)

// LaneState is a point-in-time view of one scheduled lane.
type LaneState struct {
	Lane   Lane       `json:"lane"`
	Status TaskStatus `json:"status"`
	// LastStatus is ok or error once the lane has run.
	LastStatus   TaskStatus    `json:"last_status,omitempty"`
	Interval     time.Duration `json:"interval"`
	RunCount     int           `json:"run_count"`
	LastRunAt    *time.Time    `json:"last_run_at,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	NextRunAt    *time.Time    `json:"next_run_at,omitempty"`
}
