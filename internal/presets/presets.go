// Package presets is the fixed catalog of caption styles.
package presets

import (
	"fmt"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Preset identifiers
const (
	BottomCentered = "bottom-centered"
	TopBar         = "top-bar"
	Karaoke        = "karaoke-style"
)

// DefaultID is the preset used when a request does not name one
const DefaultID = BottomCentered

const fontFamily = "Noto Sans, Noto Sans Devanagari, sans-serif"

var catalog = []types.Preset{
	{
		ID:   BottomCentered,
		Name: "Bottom Centered",
		Style: types.PresetStyle{
			Position:        types.PositionBottom,
			Alignment:       types.AlignCenter,
			BackgroundColor: "rgba(0, 0, 0, 0.8)",
			TextColor:       "white",
			FontSize:        24,
			Padding:         16,
			BorderRadius:    8,
			FontFamily:      fontFamily,
		},
	},
	{
		ID:   TopBar,
		Name: "Top Bar",
		Style: types.PresetStyle{
			Position:        types.PositionTop,
			Alignment:       types.AlignCenter,
			BackgroundColor: "rgba(0, 0, 0, 0.9)",
			TextColor:       "white",
			FontSize:        20,
			Padding:         12,
			BorderRadius:    0,
			FontFamily:      fontFamily,
		},
	},
	{
		ID:   Karaoke,
		Name: "Karaoke Style",
		Style: types.PresetStyle{
			Position:        types.PositionCenter,
			Alignment:       types.AlignCenter,
			BackgroundColor: "rgba(0, 0, 0, 0.85)",
			TextColor:       "#FFD700",
			FontSize:        32,
			Padding:         24,
			BorderRadius:    16,
			FontFamily:      fontFamily,
		},
	},
}

// All returns a copy of the catalog in display order
func All() []types.Preset {
	out := make([]types.Preset, len(catalog))
	copy(out, catalog)
	return out
}

// Get looks up a preset by identifier
func Get(id string) (types.Preset, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return types.Preset{}, fmt.Errorf("unknown preset %q", id)
}

// IsKaraoke reports whether the preset uses word-by-word highlighting
func IsKaraoke(p types.Preset) bool {
	return p.ID == Karaoke
}
