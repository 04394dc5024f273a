// Package compositor selects the caption active at a playback time and draws it onto video frames.
package compositor

import (
	"math"
	"strings"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// minSpan keeps progress finite for zero-length captions
const minSpan = 0.001

// ActiveCaption returns the first caption whose inclusive [start, end] contains t
func ActiveCaption(captions []types.Caption, t float64) (types.Caption, bool) {
	for _, c := range captions {
		if t >= c.StartTime && t <= c.EndTime {
			return c, true
		}
	}
	return types.Caption{}, false
}

// Progress is the fraction of the caption elapsed at t, clamped to [0, 1]
func Progress(c types.Caption, t float64) float64 {
	span := math.Max(c.EndTime-c.StartTime, minSpan)
	p := (t - c.StartTime) / span
	return math.Max(0, math.Min(1, p))
}

// WordState is the karaoke highlight state of one word
type WordState struct {
	Word string
	Sung bool
}

// WordStates splits text into words and marks those already sung at progress.
// Words before floor(progress*n) are sung; the word at that index is sung once
// more than half of its own slot has elapsed.
func WordStates(text string, progress float64) []WordState {
	words := strings.Fields(text)
	n := len(words)
	states := make([]WordState, n)
	if n == 0 {
		return states
	}

	progress = math.Max(0, math.Min(1, progress))
	pos := progress * float64(n)
	boundary := int(math.Floor(pos))
	local := pos - float64(boundary)

	for i, w := range words {
		states[i] = WordState{
			Word: w,
			Sung: i < boundary || (i == boundary && local > 0.5),
		}
	}
	return states
}

// SungCount returns how many words are highlighted
func SungCount(states []WordState) int {
	n := 0
	for _, s := range states {
		if s.Sung {
			n++
		}
	}
	return n
}
