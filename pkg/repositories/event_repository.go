package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harmonia-app/harmonia/pkg/database"
	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

const (
	eventsTable       = "events"
	participantsTable = "event_participants"
)

var eventStruct = database.NewStruct(new(models.Event))

// EventSortFields are the columns the event list can be sorted by.
var EventSortFields = map[string]bool{
	"event_date": true,
	"title":      true,
	"created_at": true,
}

// EventRepository handles database operations for events and their
// participant links
type EventRepository struct {
	*Repository
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.DB, logger ectologger.Logger) *EventRepository {
	return &EventRepository{
		Repository: NewRepository(db, logger),
	}
}

// CreateWithParticipants persists the event and its participant links in a
// single transaction. Every participant id must resolve to a non-deleted
// character owned by the requesting user.
func (r *EventRepository) CreateWithParticipants(ctx context.Context, event *models.Event, participantIDs []uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.CreateWithParticipants")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}
	event.UserID = userID

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.AnalysisStatus = models.AnalysisStatusPending

	txCtx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create event")
	}
	defer tx.Rollback(ctx)

	if err := r.verifyParticipants(txCtx, tx, userID, participantIDs); err != nil {
		return err
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(eventsTable).
		Cols("id", "user_id", "title", "description", "event_date", "analysis_status", "created_at", "updated_at").
		Values(event.ID, event.UserID, event.Title, event.Description, event.EventDate, event.AnalysisStatus,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = tx.QueryRowContext(txCtx, query, args...).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": event.ID,
		}).Error("failed to create event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create event")
	}

	if err := r.insertParticipants(txCtx, tx, event.ID, participantIDs); err != nil {
		return err
	}

	if err := r.touchLastInteracted(txCtx, tx, userID, participantIDs); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create event")
	}

	return nil
}

// UpdateWithParticipants updates the event fields and fully replaces its
// participant set in a single transaction.
func (r *EventRepository) UpdateWithParticipants(ctx context.Context, event *models.Event, participantIDs []uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.UpdateWithParticipants")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	txCtx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event")
	}
	defer tx.Rollback(ctx)

	if err := r.verifyParticipants(txCtx, tx, userID, participantIDs); err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(eventsTable).Set(
		ub.Assign("title", event.Title),
		ub.Assign("description", event.Description),
		ub.Assign("event_date", event.EventDate),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", event.ID), ub.Equal("user_id", userID))

	query, args := ub.Build()
	result, err := tx.ExecContext(txCtx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": event.ID,
		}).Error("failed to update event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event")
	}
	if rows == 0 {
		return NotFound("event %s does not exist", event.ID)
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(participantsTable)
	db.Where(db.Equal("event_id", event.ID))

	query, args = db.Build()
	if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": event.ID,
		}).Error("failed to replace event participants")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event")
	}

	if err := r.insertParticipants(txCtx, tx, event.ID, participantIDs); err != nil {
		return err
	}

	if err := r.touchLastInteracted(txCtx, tx, userID, participantIDs); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event")
	}

	return nil
}

// verifyParticipants checks that every id resolves to a live character owned
// by the user.
func (r *EventRepository) verifyParticipants(ctx context.Context, tx database.Tx, userID uuid.UUID, participantIDs []uuid.UUID) error {
	unique := make(map[uuid.UUID]bool, len(participantIDs))
	for _, id := range participantIDs {
		unique[id] = true
	}
	ids := make([]uuid.UUID, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(charactersTable)
	sb.Where(sb.Equal("user_id", userID), sb.In("id", uuidArgs(ids)...), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to verify event participants")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to verify participants")
	}

	if count != len(ids) {
		return NotFound("one or more participants not found or do not belong to the user")
	}

	return nil
}

func (r *EventRepository) insertParticipants(ctx context.Context, tx database.Tx, eventID uuid.UUID, participantIDs []uuid.UUID) error {
	ib := database.NewInsertBuilder()
	ib.InsertInto(participantsTable).Cols("event_id", "character_id", "position")
	for i, id := range participantIDs {
		ib.Values(eventID, id, i)
	}

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": eventID,
		}).Error("failed to insert event participants")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save participants")
	}

	return nil
}

func (r *EventRepository) touchLastInteracted(ctx context.Context, tx database.Tx, userID uuid.UUID, participantIDs []uuid.UUID) error {
	ub := database.NewUpdateBuilder()
	ub.Update(charactersTable).Set(ub.Assign("last_interacted_at", sqlbuilder.Raw("NOW()")))
	ub.Where(ub.Equal("user_id", userID), ub.In("id", uuidArgs(participantIDs)...))

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to touch character interaction times")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save participants")
	}

	return nil
}

// GetByID retrieves an event with its participants resolved inline
// (user-scoped)
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.GetByID")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := eventStruct.SelectFrom(eventsTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("id", id))

	query, args := sb.Build()
	var event models.Event
	err = r.DB().GetContext(ctx, &event, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("event %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to get event by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get event by ID")
	}

	participants, err := r.loadParticipants(ctx, []uuid.UUID{event.ID})
	if err != nil {
		return nil, err
	}
	event.Participants = participants[event.ID]
	if event.Participants == nil {
		event.Participants = []models.Participant{}
	}

	return &event, nil
}

// List returns a page of the user's events with participants resolved
func (r *EventRepository) List(ctx context.Context, page, pageSize int, sortBy, order string) (*models.Paginated[models.Event], error) {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.List")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if !EventSortFields[sortBy] {
		sortBy = "event_date"
	}

	sb := eventStruct.SelectFrom(eventsTable)
	sb.Where(sb.Equal("user_id", userID))
	if order == "asc" {
		sb.OrderBy(sortBy).Asc()
	} else {
		sb.OrderBy(sortBy).Desc()
	}
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args := sb.Build()
	events := []models.Event{}
	err = r.DB().SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list events")
	}

	eventIDs := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
	}

	participants, err := r.loadParticipants(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Participants = participants[events[i].ID]
		if events[i].Participants == nil {
			events[i].Participants = []models.Participant{}
		}
	}

	cb := database.NewSelectBuilder()
	cb.Select("COUNT(*)").From(eventsTable)
	cb.Where(cb.Equal("user_id", userID))

	query, args = cb.Build()
	var totalItems int
	err = r.DB().GetContext(ctx, &totalItems, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count events")
	}

	return &models.Paginated[models.Event]{
		Data:       events,
		Pagination: models.NewPagination(page, pageSize, totalItems),
	}, nil
}

type participantRow struct {
	EventID          uuid.UUID  `db:"event_id"`
	ID               uuid.UUID  `db:"id"`
	Name             string     `db:"name"`
	Role             string     `db:"role"`
	AvatarURL        *string    `db:"avatar_url"`
	IsOwner          bool       `db:"is_owner"`
	LastInteractedAt *time.Time `db:"last_interacted_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// loadParticipants resolves participant summaries for a set of events,
// preserving the participant order recorded at link time.
func (r *EventRepository) loadParticipants(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]models.Participant, error) {
	result := make(map[uuid.UUID][]models.Participant, len(eventIDs))
	if len(eventIDs) == 0 {
		return result, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select("ep.event_id", "c.id", "c.name", "c.role", "c.avatar_url", "c.is_owner", "c.last_interacted_at", "c.updated_at").
		From(participantsTable + " ep").
		Join(charactersTable+" c", "c.id = ep.character_id")
	sb.Where(sb.In("ep.event_id", uuidArgs(eventIDs)...))
	sb.OrderBy("ep.event_id", "ep.position").Asc()

	query, args := sb.Build()
	rows := []participantRow{}
	if err := r.DB().SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to load event participants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load participants")
	}

	for _, row := range rows {
		result[row.EventID] = append(result[row.EventID], models.Participant{
			ID:               row.ID,
			Name:             row.Name,
			Role:             row.Role,
			AvatarURL:        row.AvatarURL,
			IsOwner:          row.IsOwner,
			LastInteractedAt: row.LastInteractedAt,
			UpdatedAt:        row.UpdatedAt,
		})
	}

	return result, nil
}

// UpdateAnalysisStatus sets the analysis status of an event. It touches only
// the status column; updated_at is left alone so staleness checks reflect
// user edits, not lifecycle bookkeeping.
func (r *EventRepository) UpdateAnalysisStatus(ctx context.Context, eventID uuid.UUID, status models.AnalysisStatus) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.UpdateAnalysisStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(eventsTable).Set(ub.Assign("analysis_status", status))
	ub.Where(ub.Equal("id", eventID))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": eventID,
			"status":   status,
		}).Error("failed to update analysis status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update analysis status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update analysis status")
	}
	if rows == 0 {
		return NotFound("event %s does not exist", eventID)
	}

	return nil
}

// Delete removes an event, cascading its participant links. Ownership is
// checked explicitly so callers can distinguish 403 from 404.
func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.Delete")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	sb := database.NewSelectBuilder()
	sb.Select("user_id").From(eventsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var ownerID uuid.UUID
	err = r.DB().GetContext(ctx, &ownerID, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("event %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to fetch event for deletion")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete event")
	}

	if ownerID != userID {
		return Forbidden("user is not authorized to delete this event")
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(eventsTable)
	db.Where(db.Equal("id", id))

	query, args = db.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": id,
		}).Error("failed to delete event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete event")
	}

	return nil
}
