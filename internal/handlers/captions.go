package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/storage"
	"github.com/codebuildervaibhav/video-captioning/internal/transcription"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// EmptyTranscriptNote accompanies a successful transcription with no captions
const EmptyTranscriptNote = "Transcription returned no segments."

// CaptionGenerator turns a media file into captions
type CaptionGenerator interface {
	Generate(ctx context.Context, mediaPath string) (*types.TranscriptionResult, error)
}

// MediaAllocator names new files in the media directory
type MediaAllocator interface {
	NewMediaPath(ext string) (name, fullPath string)
}

// CaptionsHandler handles video uploads for caption generation
type CaptionsHandler struct {
	captioner CaptionGenerator
	media     MediaAllocator
	maxSizeMB int
	timeout   time.Duration
}

// NewCaptionsHandler creates a new captions handler
func NewCaptionsHandler(captioner CaptionGenerator, media MediaAllocator, maxSizeMB int, timeout time.Duration) *CaptionsHandler {
	return &CaptionsHandler{
		captioner: captioner,
		media:     media,
		maxSizeMB: maxSizeMB,
		timeout:   timeout,
	}
}

// Handle stores the uploaded video and transcribes it
func (h *CaptionsHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest,
			"Missing file. Send FormData with field 'file' as the MP4.", "ERR_NO_FILE")
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest,
			fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB), "ERR_FILE_TOO_LARGE")
	}

	if !transcription.ValidateVideoFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "Unsupported video format", "ERR_INVALID_FORMAT")
	}

	name, fullPath := h.media.NewMediaPath(filepath.Ext(file.Filename))
	if err := c.SaveFile(file, fullPath); err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to save file", "ERR_SAVE_FAILED")
	}
	log.Printf("Upload %q saved as %s (%d bytes)", file.Filename, name, file.Size)

	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.captioner.Generate(ctx, fullPath)
	if err != nil {
		log.Printf("Error generating captions for %s: %v", name, err)
		return transcriptionError(c, err)
	}

	videoURL := storage.MediaURL(name)
	log.Printf("Generated %d captions for %s via %s", len(result.Captions), name, result.Provider)

	if len(result.Captions) == 0 {
		return c.JSON(fiber.Map{
			"captions": []types.Caption{},
			"videoUrl": videoURL,
			"note":     EmptyTranscriptNote,
		})
	}

	resp := fiber.Map{
		"captions": result.Captions,
		"videoUrl": videoURL,
		"provider": result.Provider,
	}
	if result.Fallback {
		resp["note"] = "Provider quota exceeded; captions were generated locally."
	}
	return c.JSON(resp)
}

func transcriptionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, transcription.ErrNotConfigured) {
		return errorJSON(c, fiber.StatusInternalServerError,
			"No STT configured. Add DEEPGRAM_API_KEY or OPENAI_API_KEY to .env.local", "ERR_NOT_CONFIGURED")
	}

	var perr *transcription.ProviderError
	if errors.As(err, &perr) {
		switch perr.Kind {
		case transcription.KindTimeout:
			return errorJSON(c, fiber.StatusGatewayTimeout, err.Error(), "ERR_TRANSCRIPTION_TIMEOUT")
		case transcription.KindQuotaExceeded:
			return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_QUOTA_EXCEEDED")
		}
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_TRANSCRIPTION_FAILED")
	}

	return errorJSON(c, fiber.StatusInternalServerError, "Failed to generate captions", "ERR_INTERNAL")
}
