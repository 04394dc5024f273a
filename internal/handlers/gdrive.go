package handlers

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/storage"
	"github.com/codebuildervaibhav/video-captioning/internal/transcription"
)

// VideoImporter fetches remote videos into media storage
type VideoImporter interface {
	Import(ctx context.Context, link string) (*storage.Imported, error)
}

// ImportHandler handles Google Drive links and direct video URLs
type ImportHandler struct {
	importer VideoImporter
}

// NewImportHandler creates a new import handler
func NewImportHandler(importer VideoImporter) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ImportRequest represents the request body
type ImportRequest struct {
	URL string `json:"url"`
}

// Handle downloads the linked video and returns its media URL
func (h *ImportHandler) Handle(c *fiber.Ctx) error {
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}

	if req.URL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "URL is required", "ERR_NO_URL")
	}

	imported, err := h.importer.Import(c.UserContext(), req.URL)
	switch {
	case errors.Is(err, storage.ErrInvalidSource):
		return errorJSON(c, fiber.StatusBadRequest, "Invalid Google Drive link or video URL", "ERR_INVALID_URL")
	case errors.Is(err, storage.ErrNotAccessible):
		return errorJSON(c, fiber.StatusBadRequest, "File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE")
	case errors.Is(err, storage.ErrTooLarge):
		return errorJSON(c, fiber.StatusBadRequest, "File too large", "ERR_FILE_TOO_LARGE")
	case err != nil:
		log.Printf("Failed to import %s: %v", req.URL, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to download video", "ERR_DOWNLOAD_FAILED")
	}

	if !transcription.ValidateVideoFormat(imported.Name) {
		os.Remove(imported.Path)
		return errorJSON(c, fiber.StatusBadRequest, "Unsupported video format", "ERR_INVALID_FORMAT")
	}

	log.Printf("Imported %s from %s as %s", imported.OriginalName, imported.Source, imported.Name)
	return c.JSON(fiber.Map{
		"videoUrl": storage.MediaURL(imported.Name),
		"name":     imported.OriginalName,
		"source":   imported.Source,
	})
}
