package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/harmonia-app/harmonia/pkg/database"
	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

const analysesTable = "ai_analyses"

var analysisStruct = database.NewStruct(new(models.Analysis))

// AnalysisRepository handles database operations for AI analyses
type AnalysisRepository struct {
	*Repository
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db database.DB, logger ectologger.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a new analysis row. Rows are immutable aside from feedback.
func (r *AnalysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	ctx, span := tracing.StartSpan(ctx, "AnalysisRepository.Create")
	defer span.End()

	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(analysesTable).
		Cols("id", "event_id", "user_id", "analysis_type", "result", "created_at").
		Values(analysis.ID, analysis.EventID, analysis.UserID, analysis.AnalysisType, analysis.Result,
			sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&analysis.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": analysis.EventID,
		}).Error("failed to create analysis")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create analysis")
	}

	return nil
}

// ListByEvent returns all analyses for an event, most recently created
// first (user-scoped)
func (r *AnalysisRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Analysis, error) {
	ctx, span := tracing.StartSpan(ctx, "AnalysisRepository.ListByEvent")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := analysisStruct.SelectFrom(analysesTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("event_id", eventID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	analyses := []models.Analysis{}
	err = r.DB().SelectContext(ctx, &analyses, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_id": eventID,
		}).Error("failed to list analyses")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list analyses")
	}

	return analyses, nil
}

// SetFeedback records a 1 or -1 user rating on an analysis
func (r *AnalysisRepository) SetFeedback(ctx context.Context, eventID, analysisID uuid.UUID, feedback int16) error {
	ctx, span := tracing.StartSpan(ctx, "AnalysisRepository.SetFeedback")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(analysesTable).Set(ub.Assign("feedback", feedback))
	ub.Where(ub.Equal("id", analysisID), ub.Equal("event_id", eventID), ub.Equal("user_id", userID))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"analysis_id": analysisID,
		}).Error("failed to set analysis feedback")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set analysis feedback")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set analysis feedback")
	}
	if rows == 0 {
		return NotFound("analysis %s does not exist", analysisID)
	}

	return nil
}
