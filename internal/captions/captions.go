// Package captions holds operations on in-memory caption sequences.
package captions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// NewCaptionText is the placeholder text of an appended caption
const NewCaptionText = "New caption"

// defaultSpan is the length in seconds of an appended caption
const defaultSpan = 3.0

var (
	ErrIndexOutOfRange = errors.New("caption index out of range")
	ErrInvalidCaption  = errors.New("invalid caption")
)

// Edit replaces the text of the caption at index
func Edit(list []types.Caption, index int, text string) ([]types.Caption, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	out := clone(list)
	out[index].Text = text
	return out, nil
}

// Add appends a placeholder caption starting where the last one ends
func Add(list []types.Caption) []types.Caption {
	start := 0.0
	if len(list) > 0 {
		start = list[len(list)-1].EndTime
	}
	return append(clone(list), types.Caption{
		Text:      NewCaptionText,
		StartTime: start,
		EndTime:   start + defaultSpan,
	})
}

// Delete drops the caption at index
func Delete(list []types.Caption, index int) ([]types.Caption, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	out := make([]types.Caption, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...), nil
}

// Validate reports the first caption that breaks the sequence invariants
func Validate(list []types.Caption) error {
	for i, c := range list {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: caption %d has empty text", ErrInvalidCaption, i)
		}
		if c.StartTime < 0 {
			return fmt.Errorf("%w: caption %d starts before zero", ErrInvalidCaption, i)
		}
		if c.EndTime <= c.StartTime {
			return fmt.Errorf("%w: caption %d ends at %.3fs, not after its start %.3fs",
				ErrInvalidCaption, i, c.EndTime, c.StartTime)
		}
	}
	return nil
}

// ToSRT renders the sequence in SRT subtitle format
func ToSRT(list []types.Caption) string {
	var sb strings.Builder

	for i, c := range list {
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(c.StartTime), formatSRTTime(c.EndTime)))
		sb.WriteString(strings.TrimSpace(c.Text))
		sb.WriteString("\n\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// formatSRTTime converts seconds to HH:MM:SS,mmm
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

func clone(list []types.Caption) []types.Caption {
	out := make([]types.Caption, len(list))
	copy(out, list)
	return out
}
