package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-captioning/internal/presets"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

var errMissingPreset = errors.New("preset is required")

// errorJSON writes the {error, code} body every handler uses for failures
func errorJSON(c *fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// resolvePreset accepts a preset id ("karaoke-style") or a preset object.
// Presets come from the fixed catalog only; a client-supplied style is ignored.
func resolvePreset(raw json.RawMessage) (types.Preset, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return types.Preset{}, errMissingPreset
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &ref); err != nil {
			return types.Preset{}, fmt.Errorf("invalid preset: %v", err)
		}
		id = ref.ID
	}
	if id == "" {
		return types.Preset{}, errMissingPreset
	}
	return presets.Get(id)
}
