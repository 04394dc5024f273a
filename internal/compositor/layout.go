package compositor

import (
	"math"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const (
	// referenceWidth is the frame width preset sizes are expressed in
	referenceWidth = 1280.0
	edgeMargin     = 20.0
	lineSpacing    = 1.2
	maxWidthRatio  = 0.8
	karaokeGapEm   = 0.3
)

// Rect is a floating point rectangle in frame pixels
type Rect struct {
	X, Y, W, H float64
}

// Line is one wrapped row of words
type Line struct {
	Words []string
	Width float64
	// X is the left edge of the row's text
	X float64
	// Top is the top of the row's line box
	Top float64
}

// Layout is the resolved geometry of one caption on one frame
type Layout struct {
	Scale      float64
	FontSize   float64
	Padding    float64
	Radius     float64
	LineHeight float64
	Gap        float64
	Box        Rect
	Lines      []Line
}

// Measure returns the advance width of s in pixels
type Measure func(s string) float64

// Scale returns the factor preset pixel sizes are multiplied by for a frame width
func Scale(frameWidth int) float64 {
	if frameWidth <= 0 {
		return 1
	}
	return float64(frameWidth) / referenceWidth
}

// FontSize returns the scaled font size for a style on a frame
func FontSize(style types.PresetStyle, frameWidth int) float64 {
	return math.Max(1, style.FontSize*Scale(frameWidth))
}

// ComputeLayout wraps words to 80% of the frame width and anchors the
// background box by the style's position and alignment.
// measure must already be bound to a face of FontSize(style, width).
func ComputeLayout(style types.PresetStyle, width, height int, words []string, measure Measure, gap float64) Layout {
	scale := Scale(width)
	fontSize := FontSize(style, width)
	l := Layout{
		Scale:      scale,
		FontSize:   fontSize,
		Padding:    style.Padding * scale,
		Radius:     style.BorderRadius * scale,
		LineHeight: fontSize * lineSpacing,
		Gap:        gap,
	}
	margin := edgeMargin * scale

	maxText := math.Max(fontSize, float64(width)*maxWidthRatio-2*l.Padding)
	l.Lines = wrap(words, measure, gap, maxText)

	textW := 0.0
	for _, line := range l.Lines {
		textW = math.Max(textW, line.Width)
	}
	textH := float64(len(l.Lines)) * l.LineHeight

	l.Box.W = textW + 2*l.Padding
	l.Box.H = textH + 2*l.Padding

	switch style.Alignment {
	case types.AlignLeft:
		l.Box.X = margin
	case types.AlignRight:
		l.Box.X = float64(width) - margin - l.Box.W
	default:
		l.Box.X = (float64(width) - l.Box.W) / 2
	}

	switch style.Position {
	case types.PositionTop:
		l.Box.Y = margin
	case types.PositionCenter:
		l.Box.Y = (float64(height) - l.Box.H) / 2
	default:
		l.Box.Y = float64(height) - margin - l.Box.H
	}

	for i := range l.Lines {
		line := &l.Lines[i]
		offset := 0.0
		switch style.Alignment {
		case types.AlignRight:
			offset = textW - line.Width
		case types.AlignLeft:
		default:
			offset = (textW - line.Width) / 2
		}
		line.X = l.Box.X + l.Padding + offset
		line.Top = l.Box.Y + l.Padding + float64(i)*l.LineHeight
	}

	return l
}

// wrap greedily fills lines up to maxWidth; a single word wider than maxWidth gets its own line
func wrap(words []string, measure Measure, gap, maxWidth float64) []Line {
	var (
		lines   []Line
		current Line
	)
	for _, w := range words {
		ww := measure(w)
		if len(current.Words) == 0 {
			current = Line{Words: []string{w}, Width: ww}
			continue
		}
		if current.Width+gap+ww > maxWidth {
			lines = append(lines, current)
			current = Line{Words: []string{w}, Width: ww}
			continue
		}
		current.Words = append(current.Words, w)
		current.Width += gap + ww
	}
	if len(current.Words) > 0 {
		lines = append(lines, current)
	}
	return lines
}
