// Package services holds the domain services sitting between the HTTP
// handlers and the repositories.
package services

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harmonia-app/harmonia/pkg/mediation"
	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

// EventStore is the persistence surface the lifecycle service needs.
type EventStore interface {
	CreateWithParticipants(ctx context.Context, event *models.Event, participantIDs []uuid.UUID) error
	UpdateWithParticipants(ctx context.Context, event *models.Event, participantIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, page, pageSize int, sortBy, order string) (*models.Paginated[models.Event], error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CharacterStore resolves participant characters.
type CharacterStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Character, error)
}

// AnalysisStore reads and rates analyses.
type AnalysisStore interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Analysis, error)
	SetFeedback(ctx context.Context, eventID, analysisID uuid.UUID, feedback int16) error
}

// Dispatcher starts a background analysis run for an event.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.Event)
}

// CreateEventCommand is the payload for creating an event.
type CreateEventCommand struct {
	Title          string      `json:"title" validate:"required,max=200"`
	Description    string      `json:"description" validate:"required"`
	EventDate      *time.Time  `json:"event_date"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=2"`
}

// UpdateEventCommand is the partial-update payload. Nil fields keep their
// current values.
type UpdateEventCommand struct {
	Title          *string     `json:"title" validate:"omitempty,max=200"`
	Description    *string     `json:"description"`
	EventDate      *time.Time  `json:"event_date"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"omitempty,min=2"`
}

// EventService owns event CRUD and the mutability rules around the analysis
// lifecycle: creation dispatches a background analysis and a completed
// analysis locks the event against edits.
type EventService struct {
	events     EventStore
	characters CharacterStore
	analyses   AnalysisStore
	dispatcher Dispatcher
	logger     ectologger.Logger
}

func NewEventService(events EventStore, characters CharacterStore, analyses AnalysisStore, dispatcher Dispatcher, logger ectologger.Logger) *EventService {
	return &EventService{
		events:     events,
		characters: characters,
		analyses:   analyses,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Create persists the event with its participant links, dispatches the
// mediation analysis without awaiting it, and returns the event with status
// pending.
func (s *EventService) Create(ctx context.Context, cmd CreateEventCommand) (*models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "EventService.Create")
	defer span.End()

	event := &models.Event{
		Title:       cmd.Title,
		Description: cmd.Description,
		EventDate:   cmd.EventDate,
	}

	if err := s.events.CreateWithParticipants(ctx, event, cmd.ParticipantIDs); err != nil {
		return nil, err
	}

	created, err := s.events.GetByID(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, created)

	return created, nil
}

// Update merges the supplied fields over the current event and fully
// replaces the participant set. Events with a completed analysis are
// immutable.
func (s *EventService) Update(ctx context.Context, id uuid.UUID, cmd UpdateEventCommand) (*models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "EventService.Update")
	defer span.End()

	current, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.AnalysisStatus == models.AnalysisStatusCompleted {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "cannot update an event that has already been analyzed")
	}

	merged := &models.Event{
		ID:          current.ID,
		Title:       current.Title,
		Description: current.Description,
		EventDate:   current.EventDate,
	}
	if cmd.Title != nil {
		merged.Title = *cmd.Title
	}
	if cmd.Description != nil {
		merged.Description = *cmd.Description
	}
	if cmd.EventDate != nil {
		merged.EventDate = cmd.EventDate
	}

	participantIDs := cmd.ParticipantIDs
	if participantIDs == nil {
		participantIDs = make([]uuid.UUID, 0, len(current.Participants))
		for _, p := range current.Participants {
			participantIDs = append(participantIDs, p.ID)
		}
	}

	if err := s.events.UpdateWithParticipants(ctx, merged, participantIDs); err != nil {
		return nil, err
	}

	return s.events.GetByID(ctx, id)
}

// Get returns the event with participants resolved.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return s.events.GetByID(ctx, id)
}

// List returns a page of the user's events.
func (s *EventService) List(ctx context.Context, page, pageSize int, sortBy, order string) (*models.Paginated[models.Event], error) {
	return s.events.List(ctx, page, pageSize, sortBy, order)
}

// Delete removes an event and its participant links.
func (s *EventService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.events.Delete(ctx, id)
}

// GetAnalyses returns the event's analyses, most recent first, each carrying
// a staleness warning when event or participant data changed after it was
// generated. Staleness is recomputed on every call.
func (s *EventService) GetAnalyses(ctx context.Context, eventID uuid.UUID) ([]models.Analysis, error) {
	ctx, span := tracing.StartSpan(ctx, "EventService.GetAnalyses")
	defer span.End()

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	analyses, err := s.analyses.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if len(analyses) == 0 {
		return []models.Analysis{}, nil
	}

	participantIDs := make([]uuid.UUID, 0, len(event.Participants))
	for _, p := range event.Participants {
		participantIDs = append(participantIDs, p.ID)
	}

	characters, err := s.characters.GetByIDs(ctx, participantIDs)
	if err != nil {
		return nil, err
	}

	return mediation.EvaluateStaleness(event, characters, analyses), nil
}

// SetAnalysisFeedback records a 1 or -1 rating on an analysis of the event.
func (s *EventService) SetAnalysisFeedback(ctx context.Context, eventID, analysisID uuid.UUID, feedback int16) error {
	ctx, span := tracing.StartSpan(ctx, "EventService.SetAnalysisFeedback")
	defer span.End()

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return err
	}

	return s.analyses.SetFeedback(ctx, eventID, analysisID, feedback)
}
