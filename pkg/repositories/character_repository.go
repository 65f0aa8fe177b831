package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/harmonia-app/harmonia/pkg/database"
	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/tracing"
)

const charactersTable = "characters"

var characterStruct = database.NewStruct(new(models.Character))

// CharacterSortFields are the columns the character list can be sorted by.
var CharacterSortFields = map[string]bool{
	"name":               true,
	"last_interacted_at": true,
	"created_at":         true,
}

// CharacterRepository handles database operations for characters
type CharacterRepository struct {
	*Repository
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db database.DB, logger ectologger.Logger) *CharacterRepository {
	return &CharacterRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new character
func (r *CharacterRepository) Create(ctx context.Context, character *models.Character) error {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.Create")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}
	character.UserID = userID

	if character.ID == uuid.Nil {
		character.ID = uuid.New()
	}
	if character.Traits == nil {
		character.Traits = pq.StringArray{}
	}
	if character.Motivations == nil {
		character.Motivations = pq.StringArray{}
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(charactersTable).
		Cols("id", "user_id", "name", "role", "description", "traits", "motivations", "avatar_url", "is_owner", "created_at", "updated_at").
		Values(character.ID, character.UserID, character.Name, character.Role, character.Description,
			character.Traits, character.Motivations, character.AvatarURL, character.IsOwner,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&character.CreatedAt, &character.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": character.ID,
		}).Error("failed to create character")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create character")
	}

	return nil
}

// GetByID retrieves a character by ID (user-scoped, excluding soft-deleted)
func (r *CharacterRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.GetByID")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := characterStruct.SelectFrom(charactersTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("id", id), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var character models.Character
	err = r.DB().GetContext(ctx, &character, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("character %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": id,
		}).Error("failed to get character by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get character by ID")
	}

	return &character, nil
}

// GetByIDs resolves characters by id, scoped to the requesting user and
// excluding soft-deleted rows. Missing ids are silently absent from the
// result.
func (r *CharacterRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Character, error) {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.Character{}, nil
	}

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := characterStruct.SelectFrom(charactersTable)
	sb.Where(sb.Equal("user_id", userID), sb.In("id", uuidArgs(ids)...), sb.IsNull("deleted_at"))
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	characters := []models.Character{}
	err = r.DB().SelectContext(ctx, &characters, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get characters by IDs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get characters")
	}

	return characters, nil
}

// List returns a page of the user's characters
func (r *CharacterRepository) List(ctx context.Context, page, pageSize int, sortBy, order string) (*models.Paginated[models.Character], error) {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.List")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if !CharacterSortFields[sortBy] {
		sortBy = "created_at"
	}

	sb := characterStruct.SelectFrom(charactersTable)
	sb.Where(sb.Equal("user_id", userID), sb.IsNull("deleted_at"))
	if order == "asc" {
		sb.OrderBy(sortBy).Asc()
	} else {
		sb.OrderBy(sortBy).Desc()
	}
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args := sb.Build()
	characters := []models.Character{}
	err = r.DB().SelectContext(ctx, &characters, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list characters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list characters")
	}

	cb := database.NewSelectBuilder()
	cb.Select("COUNT(*)").From(charactersTable)
	cb.Where(cb.Equal("user_id", userID), cb.IsNull("deleted_at"))

	query, args = cb.Build()
	var totalItems int
	err = r.DB().GetContext(ctx, &totalItems, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count characters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count characters")
	}

	return &models.Paginated[models.Character]{
		Data:       characters,
		Pagination: models.NewPagination(page, pageSize, totalItems),
	}, nil
}

// Update updates the editable fields of a character
func (r *CharacterRepository) Update(ctx context.Context, character *models.Character) error {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.Update")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(charactersTable).Set(
		ub.Assign("name", character.Name),
		ub.Assign("role", character.Role),
		ub.Assign("description", character.Description),
		ub.Assign("traits", character.Traits),
		ub.Assign("motivations", character.Motivations),
		ub.Assign("avatar_url", character.AvatarURL),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", character.ID), ub.Equal("user_id", userID), ub.IsNull("deleted_at"))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": character.ID,
		}).Error("failed to update character")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update character")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update character")
	}
	if rows == 0 {
		return NotFound("character %s does not exist", character.ID)
	}

	return nil
}

// SoftDelete marks a character as deleted without removing the row
func (r *CharacterRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.SoftDelete")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(charactersTable).Set(
		ub.Assign("deleted_at", sqlbuilder.Raw("NOW()")),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", id), ub.Equal("user_id", userID), ub.IsNull("deleted_at"))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": id,
		}).Error("failed to delete character")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete character")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete character")
	}
	if rows == 0 {
		return NotFound("character %s does not exist", id)
	}

	return nil
}

// GetProfile returns the user's owner-flagged character, if any
func (r *CharacterRepository) GetProfile(ctx context.Context) (*models.Character, error) {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.GetProfile")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := characterStruct.SelectFrom(charactersTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("is_owner", true), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var character models.Character
	err = r.DB().GetContext(ctx, &character, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("profile does not exist")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get profile")
	}

	return &character, nil
}

// UpdateAvatarURL sets the avatar URL of a character
func (r *CharacterRepository) UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	ctx, span := tracing.StartSpan(ctx, "CharacterRepository.UpdateAvatarURL")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(charactersTable).Set(
		ub.Assign("avatar_url", avatarURL),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", id), ub.Equal("user_id", userID), ub.IsNull("deleted_at"))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"character_id": id,
		}).Error("failed to update avatar URL")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update avatar URL")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update avatar URL")
	}
	if rows == 0 {
		return NotFound("character %s does not exist", id)
	}

	return nil
}
