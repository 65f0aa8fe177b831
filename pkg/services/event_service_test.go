package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonia-app/harmonia/pkg/mediation"
	"github.com/harmonia-app/harmonia/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeEventStore struct {
	events map[uuid.UUID]*models.Event

	createdParticipants []uuid.UUID
	updatedParticipants []uuid.UUID
	updatedEvent        *models.Event
	deleted             []uuid.UUID
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: map[uuid.UUID]*models.Event{}}
}

func (f *fakeEventStore) put(event *models.Event) {
	copied := *event
	f.events[event.ID] = &copied
}

func (f *fakeEventStore) CreateWithParticipants(_ context.Context, event *models.Event, participantIDs []uuid.UUID) error {
	event.ID = uuid.New()
	event.AnalysisStatus = models.AnalysisStatusPending
	f.createdParticipants = participantIDs

	stored := *event
	for _, id := range participantIDs {
		stored.Participants = append(stored.Participants, models.Participant{ID: id})
	}
	f.events[event.ID] = &stored
	return nil
}

func (f *fakeEventStore) UpdateWithParticipants(_ context.Context, event *models.Event, participantIDs []uuid.UUID) error {
	f.updatedEvent = event
	f.updatedParticipants = participantIDs

	stored := f.events[event.ID]
	stored.Title = event.Title
	stored.Description = event.Description
	stored.EventDate = event.EventDate
	stored.Participants = nil
	for _, id := range participantIDs {
		stored.Participants = append(stored.Participants, models.Participant{ID: id})
	}
	return nil
}

func (f *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "event not found")
	}
	copied := *event
	return &copied, nil
}

func (f *fakeEventStore) List(_ context.Context, page, pageSize int, _, _ string) (*models.Paginated[models.Event], error) {
	items := make([]models.Event, 0, len(f.events))
	for _, event := range f.events {
		items = append(items, *event)
	}
	return &models.Paginated[models.Event]{
		Data:       items,
		Pagination: models.NewPagination(page, pageSize, len(items)),
	}, nil
}

func (f *fakeEventStore) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.events, id)
	return nil
}

type fakeCharacterStore struct {
	characters []models.Character
}

func (f *fakeCharacterStore) GetByIDs(_ context.Context, _ []uuid.UUID) ([]models.Character, error) {
	return f.characters, nil
}

type fakeAnalysisStore struct {
	analyses []models.Analysis
	feedback map[uuid.UUID]int16
}

func (f *fakeAnalysisStore) ListByEvent(_ context.Context, _ uuid.UUID) ([]models.Analysis, error) {
	return f.analyses, nil
}

func (f *fakeAnalysisStore) SetFeedback(_ context.Context, _, analysisID uuid.UUID, feedback int16) error {
	if f.feedback == nil {
		f.feedback = map[uuid.UUID]int16{}
	}
	f.feedback[analysisID] = feedback
	return nil
}

type fakeDispatcher struct {
	dispatched []*models.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, event *models.Event) {
	f.dispatched = append(f.dispatched, event)
}

func newTestService() (*EventService, *fakeEventStore, *fakeCharacterStore, *fakeAnalysisStore, *fakeDispatcher) {
	events := newFakeEventStore()
	characters := &fakeCharacterStore{}
	analyses := &fakeAnalysisStore{}
	dispatcher := &fakeDispatcher{}
	return NewEventService(events, characters, analyses, dispatcher, getTestLogger()), events, characters, analyses, dispatcher
}

func TestCreateDispatchesAnalysis(t *testing.T) {
	service, events, _, _, dispatcher := newTestService()

	participants := []uuid.UUID{uuid.New(), uuid.New()}
	created, err := service.Create(context.Background(), CreateEventCommand{
		Title:          "Argument",
		Description:    "They argued.",
		ParticipantIDs: participants,
	})
	require.NoError(t, err)

	assert.Equal(t, models.AnalysisStatusPending, created.AnalysisStatus)
	assert.Equal(t, participants, events.createdParticipants)

	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, created.ID, dispatcher.dispatched[0].ID)
}

func TestUpdateRejectsCompletedEvent(t *testing.T) {
	service, events, _, _, _ := newTestService()

	event := &models.Event{
		ID:             uuid.New(),
		Title:          "Argument",
		AnalysisStatus: models.AnalysisStatusCompleted,
	}
	events.put(event)

	title := "New title"
	_, err := service.Update(context.Background(), event.ID, UpdateEventCommand{Title: &title})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "cannot update an event that has already been analyzed")
	assert.Nil(t, events.updatedEvent)
}

func TestUpdateMergesOmittedFields(t *testing.T) {
	service, events, _, _, _ := newTestService()

	date := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	p1, p2 := uuid.New(), uuid.New()
	event := &models.Event{
		ID:             uuid.New(),
		Title:          "Original title",
		Description:    "Original description",
		EventDate:      &date,
		AnalysisStatus: models.AnalysisStatusFailed,
		Participants:   []models.Participant{{ID: p1}, {ID: p2}},
	}
	events.put(event)

	description := "Updated description"
	updated, err := service.Update(context.Background(), event.ID, UpdateEventCommand{Description: &description})
	require.NoError(t, err)

	// omitted fields keep their current values
	assert.Equal(t, "Original title", updated.Title)
	assert.Equal(t, "Updated description", updated.Description)
	require.NotNil(t, updated.EventDate)
	assert.True(t, date.Equal(*updated.EventDate))
	assert.Equal(t, []uuid.UUID{p1, p2}, events.updatedParticipants)
}

func TestUpdateReplacesParticipants(t *testing.T) {
	service, events, _, _, _ := newTestService()

	event := &models.Event{
		ID:             uuid.New(),
		Title:          "Argument",
		AnalysisStatus: models.AnalysisStatusPending,
		Participants:   []models.Participant{{ID: uuid.New()}, {ID: uuid.New()}},
	}
	events.put(event)

	replacement := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	updated, err := service.Update(context.Background(), event.ID, UpdateEventCommand{ParticipantIDs: replacement})
	require.NoError(t, err)

	assert.Equal(t, replacement, events.updatedParticipants)
	assert.Len(t, updated.Participants, 3)
}

func TestGetAnalysesEmpty(t *testing.T) {
	service, events, _, _, _ := newTestService()

	event := &models.Event{ID: uuid.New()}
	events.put(event)

	analyses, err := service.GetAnalyses(context.Background(), event.ID)
	require.NoError(t, err)
	assert.NotNil(t, analyses)
	assert.Empty(t, analyses)
}

func TestGetAnalysesAttachesStalenessWarning(t *testing.T) {
	service, events, characters, analyses, _ := newTestService()

	now := time.Now()
	participantID := uuid.New()
	event := &models.Event{
		ID:           uuid.New(),
		UpdatedAt:    now.Add(-2 * time.Hour),
		Participants: []models.Participant{{ID: participantID}},
	}
	events.put(event)

	characters.characters = []models.Character{{ID: participantID, UpdatedAt: now}}
	analyses.analyses = []models.Analysis{
		{ID: uuid.New(), CreatedAt: now.Add(time.Hour)},
		{ID: uuid.New(), CreatedAt: now.Add(-time.Hour)},
	}

	result, err := service.GetAnalyses(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Nil(t, result[0].OutdatedDataWarning)
	require.NotNil(t, result[1].OutdatedDataWarning)
	assert.Equal(t, mediation.OutdatedDataWarning, *result[1].OutdatedDataWarning)
}

func TestSetAnalysisFeedback(t *testing.T) {
	service, events, _, analyses, _ := newTestService()

	event := &models.Event{ID: uuid.New()}
	events.put(event)

	analysisID := uuid.New()
	require.NoError(t, service.SetAnalysisFeedback(context.Background(), event.ID, analysisID, -1))
	assert.Equal(t, int16(-1), analyses.feedback[analysisID])

	err := service.SetAnalysisFeedback(context.Background(), uuid.New(), analysisID, 1)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
