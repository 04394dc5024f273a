package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/storage"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Previewer renders a single composited frame as PNG
type Previewer interface {
	Preview(ctx context.Context, job types.ExportJob, input string, t float64) ([]byte, error)
}

// VideoResolver maps a video URL to a local file
type VideoResolver interface {
	ResolveVideo(videoURL string) (string, error)
}

// PreviewHandler renders caption overlays on a single frame
type PreviewHandler struct {
	previewer Previewer
	videos    VideoResolver
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(previewer Previewer, videos VideoResolver) *PreviewHandler {
	return &PreviewHandler{previewer: previewer, videos: videos}
}

// PreviewRequest is the body of POST /api/preview
type PreviewRequest struct {
	VideoURL string          `json:"videoUrl"`
	Captions []types.Caption `json:"captions"`
	Preset   json.RawMessage `json:"preset"`
	Time     float64         `json:"time"`
}

// Handle returns the frame at time with the active caption drawn on it
func (h *PreviewHandler) Handle(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if req.VideoURL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "videoUrl is required", "ERR_MISSING_PARAMS")
	}

	preset, err := resolvePreset(req.Preset)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_PRESET")
	}

	input, err := h.videos.ResolveVideo(req.VideoURL)
	if errors.Is(err, storage.ErrUnknownVideo) {
		return errorJSON(c, fiber.StatusNotFound, "Video not found", "ERR_NOT_FOUND")
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_INTERNAL")
	}

	job := types.ExportJob{VideoURL: req.VideoURL, Captions: req.Captions, Preset: preset}
	png, err := h.previewer.Preview(c.UserContext(), job, input, req.Time)
	if err != nil {
		log.Printf("Preview failed for %s at %.2fs: %v", req.VideoURL, req.Time, err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to render preview", "ERR_RENDER_FAILED")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
