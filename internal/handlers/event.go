package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/harmonia-app/harmonia/pkg/services"
	"github.com/harmonia-app/harmonia/pkg/utils"
)

// EventHandler handles event-related API requests
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{
		events: events,
	}
}

// FeedbackRequest is the request body for rating an analysis
type FeedbackRequest struct {
	Feedback int16 `json:"feedback" validate:"required,oneof=1 -1"`
}

// RegisterRoutes registers the event routes
func (h *EventHandler) RegisterRoutes(g *echo.Group) {
	events := g.Group("/events")
	events.POST("", h.Create)
	events.GET("", h.List)
	events.GET("/:id", h.Get)
	events.PUT("/:id", h.Update)
	events.DELETE("/:id", h.Delete)
	events.GET("/:id/analyses", h.GetAnalyses)
	events.POST("/:id/analyses/:analysisId/feedback", h.SetFeedback)
}

// Create handles POST /events
func (h *EventHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	cmd, err := utils.BindRequest[services.CreateEventCommand](c)
	if err != nil {
		return err
	}

	event, err := h.events.Create(ctx, cmd)
	if err != nil {
		return err
	}

	return CreatedResponse(c, event)
}

// List handles GET /events
func (h *EventHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, pageSize := ParsePagination(c)
	sortBy := c.QueryParam("sortBy")
	order := c.QueryParam("order")

	events, err := h.events.List(ctx, page, pageSize, sortBy, order)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}

// Get handles GET /events/:id
func (h *EventHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	event, err := h.events.Get(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, event)
}

// Update handles PUT /events/:id
func (h *EventHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	cmd, err := utils.BindRequest[services.UpdateEventCommand](c)
	if err != nil {
		return err
	}

	event, err := h.events.Update(ctx, id, cmd)
	if err != nil {
		return err
	}

	return SuccessResponse(c, event)
}

// Delete handles DELETE /events/:id
func (h *EventHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.events.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// GetAnalyses handles GET /events/:id/analyses
func (h *EventHandler) GetAnalyses(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	analyses, err := h.events.GetAnalyses(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, analyses)
}

// SetFeedback handles POST /events/:id/analyses/:analysisId/feedback
func (h *EventHandler) SetFeedback(c echo.Context) error {
	ctx := c.Request().Context()

	eventID, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	analysisID, err := ParseUUID(c, "analysisId")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[FeedbackRequest](c)
	if err != nil {
		return err
	}

	if err := h.events.SetAnalysisFeedback(ctx, eventID, analysisID, req.Feedback); err != nil {
		return err
	}

	return NoContentResponse(c)
}
