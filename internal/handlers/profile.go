package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/harmonia-app/harmonia/pkg/models"
	"github.com/harmonia-app/harmonia/pkg/repositories"
	"github.com/harmonia-app/harmonia/pkg/utils"
)

// ProfileHandler handles the user's own owner-flagged character
type ProfileHandler struct {
	repo *repositories.CharacterRepository
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(repo *repositories.CharacterRepository) *ProfileHandler {
	return &ProfileHandler{
		repo: repo,
	}
}

// RegisterRoutes registers the profile routes
func (h *ProfileHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/profile", h.Get)
	g.PUT("/profile", h.Put)
}

// Get handles GET /profile
func (h *ProfileHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := h.repo.GetProfile(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, profile)
}

// Put handles PUT /profile. It creates the owner character on first use and
// updates it afterwards; there is at most one owner character per user.
func (h *ProfileHandler) Put(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[CharacterRequest](c)
	if err != nil {
		return err
	}

	profile, err := h.repo.GetProfile(ctx)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			profile = &models.Character{
				Name:        req.Name,
				Role:        req.Role,
				Description: req.Description,
				Traits:      pq.StringArray(req.Traits),
				Motivations: pq.StringArray(req.Motivations),
				IsOwner:     true,
			}
			if err := h.repo.Create(ctx, profile); err != nil {
				return err
			}
			return CreatedResponse(c, profile)
		}
		return err
	}

	profile.Name = req.Name
	profile.Role = req.Role
	profile.Description = req.Description
	profile.Traits = pq.StringArray(req.Traits)
	profile.Motivations = pq.StringArray(req.Motivations)

	if err := h.repo.Update(ctx, profile); err != nil {
		return err
	}

	updated, err := h.repo.GetProfile(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}
