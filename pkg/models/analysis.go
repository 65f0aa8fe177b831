package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-app/harmonia/pkg/database"
)

// AnalysisTypeMediation is the only analysis type currently produced.
const AnalysisTypeMediation = "mediation"

// MediationResult is the structured output of a mediation analysis run.
type MediationResult struct {
	GeneratedSummary    string `json:"generated_summary"`
	Analysis            string `json:"analysis"`
	ObjectiveEvaluation string `json:"objective_evaluation"`
}

// Analysis is a generated artifact tied to exactly one event. Rows are
// immutable aside from the feedback column; a re-run creates a new row.
type Analysis struct {
	ID           uuid.UUID                      `db:"id" json:"id"`
	EventID      uuid.UUID                      `db:"event_id" json:"event_id"`
	UserID       uuid.UUID                      `db:"user_id" json:"user_id"`
	AnalysisType string                         `db:"analysis_type" json:"analysis_type"`
	Result       database.JSONB[MediationResult] `db:"result" json:"result"`
	Feedback     *int16                         `db:"feedback" json:"feedback,omitempty"`
	CreatedAt    time.Time                      `db:"created_at" json:"created_at"`

	// OutdatedDataWarning is computed at read time and never stored.
	OutdatedDataWarning *string `db:"-" json:"outdated_data_warning,omitempty"`
}
