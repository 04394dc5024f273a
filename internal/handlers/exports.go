package handlers

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/storage"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// ExportReader reads persisted export records
type ExportReader interface {
	GetExport(jobID string) (*types.ExportRecord, error)
	ListExports(limit int) ([]types.ExportRecord, error)
}

// ProgressSource reports the latest progress event of a job
type ProgressSource interface {
	Last(jobID string) (types.Progress, bool)
}

// ExportsHandler serves export status and finished videos
type ExportsHandler struct {
	db       ExportReader
	progress ProgressSource
}

// NewExportsHandler creates a new exports handler; progress may be nil
func NewExportsHandler(db ExportReader, progress ProgressSource) *ExportsHandler {
	return &ExportsHandler{db: db, progress: progress}
}

// List returns the most recent exports
func (h *ExportsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	exports, err := h.db.ListExports(limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_DB")
	}
	return c.JSON(exports)
}

// Get returns one export record with its latest progress
func (h *ExportsHandler) Get(c *fiber.Ctx) error {
	rec, err := h.db.GetExport(c.Params("id"))
	if errors.Is(err, storage.ErrExportNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Export not found", "ERR_NOT_FOUND")
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_DB")
	}

	resp := fiber.Map{"export": rec}
	if h.progress != nil {
		if p, ok := h.progress.Last(rec.JobID); ok {
			resp["progress"] = p
		}
	}
	return c.JSON(resp)
}

// Download sends the rendered video of a completed export
func (h *ExportsHandler) Download(c *fiber.Ctx) error {
	rec, err := h.db.GetExport(c.Params("id"))
	if errors.Is(err, storage.ErrExportNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "Export not found", "ERR_NOT_FOUND")
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err.Error(), "ERR_DB")
	}

	if rec.Status != types.StatusCompleted {
		return errorJSON(c, fiber.StatusConflict, "Export is "+rec.Status, "ERR_NOT_READY")
	}
	if _, err := os.Stat(rec.OutputPath); err != nil {
		return errorJSON(c, fiber.StatusGone, "Export file is no longer available", "ERR_FILE_GONE")
	}

	return c.Download(rec.OutputPath, "captioned-video"+filepath.Ext(rec.OutputPath))
}
