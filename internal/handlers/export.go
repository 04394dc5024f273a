package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/video-captioning/internal/captions"
	"github.com/codebuildervaibhav/video-captioning/internal/queue"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// StatusPrepared is reported when the source video is not stored on this server
const StatusPrepared = "PREPARED"

// VideoStore locates source videos and keeps export request dumps
type VideoStore interface {
	ResolveVideo(videoURL string) (string, error)
	SaveExportRequest(job types.ExportJob) (string, error)
}

// ExportRecorder persists new export jobs
type ExportRecorder interface {
	CreateExport(job types.ExportJob) error
	MarkFailed(jobID, message string) error
}

// JobQueue accepts export jobs for rendering
type JobQueue interface {
	EnqueueJob(job *queue.Job) error
}

// ExportHandler prepares export requests and queues server-side rendering
type ExportHandler struct {
	videos      VideoStore
	db          ExportRecorder
	queue       JobQueue
	maxCaptions int
}

// NewExportHandler creates a new export handler; db may be nil
func NewExportHandler(videos VideoStore, db ExportRecorder, queue JobQueue, maxCaptions int) *ExportHandler {
	return &ExportHandler{
		videos:      videos,
		db:          db,
		queue:       queue,
		maxCaptions: maxCaptions,
	}
}

// ExportRequest is the body of POST /api/export-video
type ExportRequest struct {
	VideoURL string          `json:"videoUrl"`
	Captions []types.Caption `json:"captions"`
	Preset   json.RawMessage `json:"preset"`
}

// Handle validates the request, dumps it to the export directory and queues the render
func (h *ExportHandler) Handle(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}

	if req.VideoURL == "" || req.Captions == nil || len(req.Preset) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "Missing required parameters", "ERR_MISSING_PARAMS")
	}

	preset, err := resolvePreset(req.Preset)
	if err != nil {
		if errors.Is(err, errMissingPreset) {
			return errorJSON(c, fiber.StatusBadRequest, "Missing required parameters", "ERR_MISSING_PARAMS")
		}
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_PRESET")
	}

	if h.maxCaptions > 0 && len(req.Captions) > h.maxCaptions {
		return errorJSON(c, fiber.StatusBadRequest,
			fmt.Sprintf("Too many captions (max %d)", h.maxCaptions), "ERR_TOO_MANY_CAPTIONS")
	}
	if err := captions.Validate(req.Captions); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_CAPTIONS")
	}

	job := types.ExportJob{
		ID:        uuid.New().String(),
		VideoURL:  req.VideoURL,
		Captions:  req.Captions,
		Preset:    preset,
		Timestamp: time.Now().UTC(),
	}

	// the dump is best effort
	var exportFile interface{}
	if p, err := h.videos.SaveExportRequest(job); err == nil {
		exportFile = p
	} else {
		log.Printf("Export %s: request dump skipped: %v", job.ID, err)
	}

	data := fiber.Map{
		"id":        job.ID,
		"jobId":     job.ID,
		"videoUrl":  job.VideoURL,
		"captions":  job.Captions,
		"preset":    job.Preset,
		"timestamp": job.Timestamp,
	}

	input, err := h.videos.ResolveVideo(job.VideoURL)
	if err != nil {
		log.Printf("Export %s: source %s is not stored locally, render skipped", job.ID, job.VideoURL)
		data["status"] = StatusPrepared
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Export data prepared successfully",
			"instructions": []string{
				"1. The video export data has been saved",
				"2. The source video is not stored on this server, so it was not rendered",
				"3. Upload the video via POST /api/generate-captions or import it via POST /api/videos/import",
				"4. Send the export request again with the returned videoUrl to render it",
			},
			"exportFile": exportFile,
			"data":       data,
		})
	}

	if h.db != nil {
		if err := h.db.CreateExport(job); err != nil {
			log.Printf("Export %s: failed to record export: %v", job.ID, err)
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to export video", "ERR_DB")
		}
	}

	if err := h.queue.EnqueueJob(queue.NewJob(job, input)); err != nil {
		log.Printf("Export %s: %v", job.ID, err)
		if h.db != nil {
			h.db.MarkFailed(job.ID, err.Error())
		}
		return errorJSON(c, fiber.StatusServiceUnavailable, "Render queue unavailable, try again later", "ERR_QUEUE_FULL")
	}

	data["status"] = types.StatusQueued
	data["statusUrl"] = "/api/exports/" + job.ID
	data["progressUrl"] = "/ws/exports/" + job.ID
	data["downloadUrl"] = "/api/exports/" + job.ID + "/download"

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Export data prepared successfully",
		"instructions": []string{
			"1. The video export data has been saved",
			"2. Rendering with burned-in captions has been queued",
			"3. Follow progress at " + data["progressUrl"].(string),
			"4. Poll " + data["statusUrl"].(string) + " until the status is COMPLETED",
			"5. Download the captioned video from " + data["downloadUrl"].(string),
		},
		"exportFile": exportFile,
		"data":       data,
	})
}
