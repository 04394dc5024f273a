package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/captions"
	"github.com/codebuildervaibhav/video-captioning/internal/presets"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Caption edit operations
const (
	OpEdit   = "edit"
	OpAdd    = "add"
	OpDelete = "delete"
)

// ListPresets returns the preset catalog
func ListPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": presets.All(),
		"default": presets.DefaultID,
	})
}

// EditRequest is the body of POST /api/captions/edit
type EditRequest struct {
	Captions []types.Caption `json:"captions"`
	Op       string          `json:"op"`
	Index    int             `json:"index"`
	Text     string          `json:"text"`
}

// EditCaptions applies one edit, add or delete and returns the new list
func EditCaptions(c *fiber.Ctx) error {
	var req EditRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}

	var (
		out []types.Caption
		err error
	)
	switch req.Op {
	case OpEdit:
		out, err = captions.Edit(req.Captions, req.Index, req.Text)
	case OpAdd:
		out = captions.Add(req.Captions)
	case OpDelete:
		out, err = captions.Delete(req.Captions, req.Index)
	default:
		return errorJSON(c, fiber.StatusBadRequest, "op must be edit, add or delete", "ERR_INVALID_OP")
	}

	if errors.Is(err, captions.ErrIndexOutOfRange) {
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INDEX_OUT_OF_RANGE")
	}
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_CAPTIONS")
	}
	return c.JSON(fiber.Map{"captions": out})
}

// SRTRequest is the body of POST /api/captions/srt
type SRTRequest struct {
	Captions []types.Caption `json:"captions"`
}

// ExportSRT renders the captions as a SubRip attachment
func ExportSRT(c *fiber.Ctx) error {
	var req SRTRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}
	if err := captions.Validate(req.Captions); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error(), "ERR_INVALID_CAPTIONS")
	}

	c.Set(fiber.HeaderContentType, "application/x-subrip; charset=utf-8")
	c.Attachment("captions.srt")
	return c.SendString(captions.ToSRT(req.Captions))
}
