package mediation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonia-app/harmonia/pkg/models"
)

func TestLastDataUpdate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	event := &models.Event{UpdatedAt: base}
	participants := []models.Character{
		{UpdatedAt: base.Add(-time.Hour)},
		{UpdatedAt: base.Add(2 * time.Hour)},
	}

	assert.Equal(t, base.Add(2*time.Hour), LastDataUpdate(event, participants))
	assert.Equal(t, base, LastDataUpdate(event, nil))
}

func TestEvaluateStaleness(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	event := &models.Event{UpdatedAt: base}
	participants := []models.Character{
		{UpdatedAt: base.Add(time.Hour)},
	}

	fresh := models.Analysis{ID: uuid.New(), CreatedAt: base.Add(2 * time.Hour)}
	stale := models.Analysis{ID: uuid.New(), CreatedAt: base.Add(30 * time.Minute)}
	exact := models.Analysis{ID: uuid.New(), CreatedAt: base.Add(time.Hour)}

	out := EvaluateStaleness(event, participants, []models.Analysis{fresh, stale, exact})
	require.Len(t, out, 3)

	// order is preserved
	assert.Equal(t, fresh.ID, out[0].ID)
	assert.Equal(t, stale.ID, out[1].ID)
	assert.Equal(t, exact.ID, out[2].ID)

	assert.Nil(t, out[0].OutdatedDataWarning)
	require.NotNil(t, out[1].OutdatedDataWarning)
	assert.Equal(t, OutdatedDataWarning, *out[1].OutdatedDataWarning)
	// created exactly at the last update is not stale
	assert.Nil(t, out[2].OutdatedDataWarning)
}

func TestEvaluateStalenessClearsPreviousWarning(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &models.Event{UpdatedAt: base}

	leftover := "stale"
	analysis := models.Analysis{CreatedAt: base.Add(time.Hour), OutdatedDataWarning: &leftover}

	out := EvaluateStaleness(event, nil, []models.Analysis{analysis})
	require.Len(t, out, 1)
	assert.Nil(t, out[0].OutdatedDataWarning)
}

func TestEvaluateStalenessEmpty(t *testing.T) {
	event := &models.Event{UpdatedAt: time.Now()}
	out := EvaluateStaleness(event, nil, nil)
	assert.Empty(t, out)
}
