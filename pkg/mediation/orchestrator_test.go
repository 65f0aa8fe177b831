package mediation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonia-app/harmonia/pkg/completion"
	"github.com/harmonia-app/harmonia/pkg/kafka"
	"github.com/harmonia-app/harmonia/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeCharacters struct {
	characters []models.Character
	err        error
	gotIDs     []uuid.UUID
}

func (f *fakeCharacters) GetByIDs(_ context.Context, ids []uuid.UUID) ([]models.Character, error) {
	f.gotIDs = ids
	return f.characters, f.err
}

type fakeAnalyses struct {
	created []*models.Analysis
	err     error
}

func (f *fakeAnalyses) Create(_ context.Context, analysis *models.Analysis) error {
	if f.err != nil {
		return f.err
	}
	analysis.ID = uuid.New()
	f.created = append(f.created, analysis)
	return nil
}

type fakeEvents struct {
	statuses []models.AnalysisStatus
	err      error
}

func (f *fakeEvents) UpdateAnalysisStatus(_ context.Context, _ uuid.UUID, status models.AnalysisStatus) error {
	f.statuses = append(f.statuses, status)
	return f.err
}

type fakeGenerator struct {
	result  models.MediationResult
	err     error
	gotReqs []completion.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req completion.Request) (models.MediationResult, error) {
	f.gotReqs = append(f.gotReqs, req)
	return f.result, f.err
}

type fakePublisher struct {
	published []*kafka.AnalysisEvent
}

func (f *fakePublisher) PublishAnalysisEvent(_ context.Context, event *kafka.AnalysisEvent) error {
	f.published = append(f.published, event)
	return nil
}

func pendingEvent() *models.Event {
	return &models.Event{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Description:    "They argued over chores.",
		AnalysisStatus: models.AnalysisStatusPending,
		Participants: []models.Participant{
			{ID: uuid.New(), Name: "Anna"},
			{ID: uuid.New(), Name: "Marek"},
		},
	}
}

func twoCharacters() []models.Character {
	return []models.Character{
		{ID: uuid.New(), Name: "Anna", Role: "sister"},
		{ID: uuid.New(), Name: "Marek", Role: "brother"},
	}
}

func TestOrchestratorRunSuccess(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{result: models.MediationResult{
		GeneratedSummary:    "summary",
		Analysis:            "analysis",
		ObjectiveEvaluation: "evaluation",
	}}
	publisher := &fakePublisher{}

	o := NewOrchestrator(characters, analyses, events, generator, publisher,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	event := pendingEvent()
	o.Run(context.Background(), event)

	require.Len(t, analyses.created, 1)
	created := analyses.created[0]
	assert.Equal(t, event.ID, created.EventID)
	assert.Equal(t, event.UserID, created.UserID)
	assert.Equal(t, models.AnalysisTypeMediation, created.AnalysisType)
	assert.Equal(t, "summary", created.Result.Data.GeneratedSummary)

	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusCompleted}, events.statuses)

	require.Len(t, generator.gotReqs, 1)
	req := generator.gotReqs[0]
	assert.Equal(t, "test-model", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "They argued over chores.")
	assert.Contains(t, req.Messages[0].Content, "#### Participant B")

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "analysis.completed", publisher.published[0].EventType)
	assert.Equal(t, event.ID, publisher.published[0].EventID)
	require.NotNil(t, publisher.published[0].AnalysisID)
	assert.Equal(t, created.ID, *publisher.published[0].AnalysisID)
}

func TestOrchestratorRunGenerationFailure(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{err: &completion.APIError{StatusCode: 500, Body: "boom"}}
	publisher := &fakePublisher{}

	o := NewOrchestrator(characters, analyses, events, generator, publisher,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	o.Run(context.Background(), pendingEvent())

	assert.Empty(t, analyses.created)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusFailed}, events.statuses)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "analysis.failed", publisher.published[0].EventType)
	assert.Equal(t, "model call failed", publisher.published[0].Reason)
}

func TestOrchestratorRunParticipantLookupFailure(t *testing.T) {
	characters := &fakeCharacters{err: errors.New("db down")}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{}

	o := NewOrchestrator(characters, analyses, events, generator, nil,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	o.Run(context.Background(), pendingEvent())

	assert.Empty(t, generator.gotReqs)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusFailed}, events.statuses)
}

func TestOrchestratorRunSkipsWithTooFewParticipants(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()[:1]}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{}
	publisher := &fakePublisher{}

	o := NewOrchestrator(characters, analyses, events, generator, publisher,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	o.Run(context.Background(), pendingEvent())

	// the run is abandoned without touching the event
	assert.Empty(t, generator.gotReqs)
	assert.Empty(t, analyses.created)
	assert.Empty(t, events.statuses)
	assert.Empty(t, publisher.published)
}

func TestOrchestratorRunSkipsTerminalStatus(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{}

	o := NewOrchestrator(characters, analyses, events, generator, nil,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	event := pendingEvent()
	event.AnalysisStatus = models.AnalysisStatusCompleted
	o.Run(context.Background(), event)

	assert.Nil(t, characters.gotIDs)
	assert.Empty(t, events.statuses)
}

func TestOrchestratorRunStatusWriteFailureLeavesEventPending(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{err: errors.New("write failed")}
	generator := &fakeGenerator{result: models.MediationResult{GeneratedSummary: "s"}}
	publisher := &fakePublisher{}

	o := NewOrchestrator(characters, analyses, events, generator, publisher,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	o.Run(context.Background(), pendingEvent())

	// the analysis row is kept and no failed transition is attempted
	assert.Len(t, analyses.created, 1)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusCompleted}, events.statuses)
	assert.Empty(t, publisher.published)
}

func TestOrchestratorDispatchAndDrain(t *testing.T) {
	characters := &fakeCharacters{characters: twoCharacters()}
	analyses := &fakeAnalyses{}
	events := &fakeEvents{}
	generator := &fakeGenerator{result: models.MediationResult{GeneratedSummary: "s"}}

	o := NewOrchestrator(characters, analyses, events, generator, nil,
		Config{Model: "test-model", Timeout: time.Second}, getTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	o.Dispatch(ctx, pendingEvent())
	// cancelling the originating request must not abort the run
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	require.NoError(t, o.Drain(drainCtx))

	assert.Len(t, analyses.created, 1)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusCompleted}, events.statuses)
}
