package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus tracks the mediation analysis lifecycle of an event.
type AnalysisStatus string

const (
	// AnalysisStatusNone means no analysis attempt has been made.
	AnalysisStatusNone AnalysisStatus = "none"
	// AnalysisStatusPending means an analysis run has been dispatched.
	AnalysisStatusPending AnalysisStatus = "pending"
	// AnalysisStatusCompleted means an analysis succeeded. Completed events
	// are locked against further edits.
	AnalysisStatusCompleted AnalysisStatus = "completed"
	// AnalysisStatusFailed means the last analysis run failed. The event
	// remains editable.
	AnalysisStatusFailed AnalysisStatus = "failed"
)

// CanTransitionTo reports whether the status is allowed to move to next.
// Status only moves forward: none -> pending -> completed|failed.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	switch s {
	case AnalysisStatusNone:
		return next == AnalysisStatusPending
	case AnalysisStatusPending:
		return next == AnalysisStatusCompleted || next == AnalysisStatusFailed
	default:
		return false
	}
}

// TransitionTo returns next if the edge is legal, otherwise an error.
func (s AnalysisStatus) TransitionTo(next AnalysisStatus) (AnalysisStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("illegal analysis status transition from %q to %q", s, next)
	}
	return next, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusCompleted || s == AnalysisStatusFailed
}

// Event is a logged interpersonal situation involving two or more
// participant characters.
type Event struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	UserID         uuid.UUID      `db:"user_id" json:"user_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	EventDate      *time.Time     `db:"event_date" json:"event_date,omitempty"`
	AnalysisStatus AnalysisStatus `db:"analysis_status" json:"analysis_status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	Participants []Participant `db:"-" json:"participants"`
}
