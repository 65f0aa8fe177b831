package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/repositories"
	"github.com/harmonia-app/harmonia/pkg/utils"
)

// CharacterHandler handles character-related API requests
type CharacterHandler struct {
	repo *repositories.CharacterRepository
}

// NewCharacterHandler creates a new character handler
func NewCharacterHandler(repo *repositories.CharacterRepository) *CharacterHandler {
	return &CharacterHandler{
		repo: repo,
	}
}

// CharacterRequest is the request body for creating or updating a character
type CharacterRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Role        string   `json:"role" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=2000"`
	Traits      []string `json:"traits"`
	Motivations []string `json:"motivations"`
}

// RegisterRoutes registers the character routes
func (h *CharacterHandler) RegisterRoutes(g *echo.Group) {
	characters := g.Group("/characters")
	characters.POST("", h.Create)
	characters.GET("", h.List)
	characters.GET("/:id", h.Get)
	characters.PUT("/:id", h.Update)
	characters.DELETE("/:id", h.Delete)
}

// Create handles POST /characters
func (h *CharacterHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[CharacterRequest](c)
	if err != nil {
		return err
	}

	character := &models.Character{
		Name:        req.Name,
		Role:        req.Role,
		Description: req.Description,
		Traits:      pq.StringArray(req.Traits),
		Motivations: pq.StringArray(req.Motivations),
	}

	if err := h.repo.Create(ctx, character); err != nil {
		return err
	}

	return CreatedResponse(c, character)
}

// List handles GET /characters
func (h *CharacterHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, pageSize := ParsePagination(c)
	sortBy := c.QueryParam("sortBy")
	order := c.QueryParam("order")

	characters, err := h.repo.List(ctx, page, pageSize, sortBy, order)
	if err != nil {
		return err
	}

	return SuccessResponse(c, characters)
}

// Get handles GET /characters/:id
func (h *CharacterHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	character, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, character)
}

// Update handles PUT /characters/:id
func (h *CharacterHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[CharacterRequest](c)
	if err != nil {
		return err
	}

	current, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	current.Name = req.Name
	current.Role = req.Role
	current.Description = req.Description
	current.Traits = pq.StringArray(req.Traits)
	current.Motivations = pq.StringArray(req.Motivations)

	if err := h.repo.Update(ctx, current); err != nil {
		return err
	}

	updated, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// Delete handles DELETE /characters/:id
func (h *CharacterHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
