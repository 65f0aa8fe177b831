package mediation

import (
	"time"

	"github.com/harmonia-app/harmonia/pkg/models"
)

// OutdatedDataWarning is attached to analyses generated before the latest
// edit of the event or any of its participants.
const OutdatedDataWarning = "The event or participant data was updated after this analysis was generated. The results may be out of date."

// LastDataUpdate returns the most recent update time among the event and its
// participants.
func LastDataUpdate(event *models.Event, participants []models.Character) time.Time {
	last := event.UpdatedAt
	for _, char := range participants {
		if char.UpdatedAt.After(last) {
			last = char.UpdatedAt
		}
	}
	return last
}

// EvaluateStaleness attaches OutdatedDataWarning to every analysis created
// before the last data update. It preserves the order of the input and is
// recomputed on every read; staleness is never persisted.
func EvaluateStaleness(event *models.Event, participants []models.Character, analyses []models.Analysis) []models.Analysis {
	lastUpdate := LastDataUpdate(event, participants)

	out := make([]models.Analysis, len(analyses))
	for i, analysis := range analyses {
		analysis.OutdatedDataWarning = nil
		if analysis.CreatedAt.Before(lastUpdate) {
			warning := OutdatedDataWarning
			analysis.OutdatedDataWarning = &warning
		}
		out[i] = analysis
	}
	return out
}
