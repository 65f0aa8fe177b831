package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/harmonia-app/harmonia/pkg/repositories"
	"github.com/harmonia-app/harmonia/pkg/storage"
)

// UploadHandler handles avatar image uploads
type UploadHandler struct {
	characters *repositories.CharacterRepository
	avatars    *storage.AvatarStore
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(characters *repositories.CharacterRepository, avatars *storage.AvatarStore) *UploadHandler {
	return &UploadHandler{
		characters: characters,
		avatars:    avatars,
	}
}

// RegisterRoutes registers the upload routes
func (h *UploadHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/characters/:id/avatar", h.UploadAvatar)
}

// UploadAvatar handles POST /characters/:id/avatar. Expects a multipart form
// with a "file" part containing a PNG or JPEG up to 2MB.
func (h *UploadHandler) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	// ownership check before touching storage
	character, err := h.characters.GetByID(ctx, id)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return BadRequest("a file upload is required")
	}

	if fileHeader.Size > storage.MaxAvatarSize {
		return BadRequest("avatar must be 2MB or smaller")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return BadRequest("failed to read uploaded file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.avatars.Upload(ctx, character.ID, contentType, fileHeader.Size, file)
	if err != nil {
		return err
	}

	if err := h.characters.UpdateAvatarURL(ctx, character.ID, url); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]string{"avatar_url": url})
}
