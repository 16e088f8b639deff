package scraper

import (
	"errors"
	"time"
)

// ErrNoCards means the result list was empty. The page gives no way to tell
// "no sales today" from stale selectors, so it is never reported as success.
var ErrNoCards = errors.New("no result cards found")

// Status is the outcome of a run
type Status string

const (
	StatusCompleted      Status = "completed"
	StatusPartialFailure Status = "partial_failure"
	StatusFatal          Status = "fatal"
	// StatusCancelled means the caller's context ended the run, not the portal
	StatusCancelled Status = "cancelled"
)

// State is one step of the run state machine
type State string

const (
	StateInitialized      State = "Initialized"
	StateBrowserReady     State = "BrowserReady"
	StateDatesFilled      State = "DatesFilled"
	StateFiltersApplied   State = "FiltersApplied"
	StateSearchSubmitted  State = "SearchSubmitted"
	StateResultsExtracted State = "ResultsExtracted"
	StateClosed           State = "Closed"
)

// Result is the outcome of one scrape run. The record lists belong to this run only.
type Result struct {
	RunID  string
	Status Status

	Uncategorized []Record
	Categorized   []Record

	Cards   int
	Skipped int
	Failed  int

	// Warnings holds the non-fatal step failures in the order they happened
	Warnings []error
	// Err is the fatal error, or all warnings joined for a partial failure
	Err error

	States []State

	StartedAt  time.Time
	FinishedAt time.Time

	// Snapshot is the page markup, captured when no cards were found
	Snapshot string
}

// Records returns the number of records in the result
func (r *Result) Records() int {
	return len(r.Uncategorized) + len(r.Categorized)
}

// Duration returns how long the run took
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NoCards reports whether the run ended with an empty result list
func (r *Result) NoCards() bool {
	return errors.Is(r.Err, ErrNoCards)
}

// Reached reports whether the run passed through state s
func (r *Result) Reached(s State) bool {
	for _, st := range r.States {
		if st == s {
			return true
		}
	}
	return false
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

func (r *Result) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

func (r *Result) fail(err error) {
	r.Status = StatusFatal
	r.Err = err
}

func (r *Result) apply(b Batch) {
	r.Uncategorized = b.Uncategorized
	r.Categorized = b.Categorized
	r.Cards = b.Cards
	r.Skipped = b.Skipped
	r.Failed = b.Failed
}

// cancel marks a run aborted by its context. The step error, if any, is kept.
func (r *Result) cancel(cause error) {
	r.Status = StatusCancelled
	switch {
	case r.Err == nil:
		r.Err = cause
	case !errors.Is(r.Err, cause):
		r.Err = errors.Join(cause, r.Err)
	}
}

// settle decides the final status of a run that was not fatal
func (r *Result) settle() {
	r.FinishedAt = time.Now()
	if r.Status == StatusFatal || r.Status == StatusCancelled {
		return
	}
	if len(r.Warnings) > 0 {
		r.Status = StatusPartialFailure
		r.Err = errors.Join(r.Warnings...)
		return
	}
	r.Status = StatusCompleted
}
