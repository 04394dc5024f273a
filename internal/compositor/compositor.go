package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/codebuildervaibhav/video-captioning/internal/presets"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const karaokeScale = 1.05

// Fixed overlay colors; karaoke sung words are gold (#FFD700), unsung words 40% white.
var (
	shadowColor  = color.NRGBA{A: 128}
	sungColor    = color.NRGBA{R: 0xFF, G: 0xD7, A: 0xFF}
	sungShadow   = color.NRGBA{A: 230}
	unsungColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 102}
	unsungShadow = color.NRGBA{A: 204}
)

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsErr = opentype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	return fontsErr
}

type faceKey struct {
	bold bool
	size float64
}

// Compositor draws the active caption of a preset onto frames.
// Font faces are cached per instance; a Compositor must not be shared between goroutines.
type Compositor struct {
	preset  types.Preset
	karaoke bool
	bold    bool
	bg      color.NRGBA
	fg      color.NRGBA
	faces   map[faceKey]font.Face
	raster  *vector.Rasterizer
}

// New creates a compositor for a preset
func New(preset types.Preset) (*Compositor, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("failed to load fonts: %w", err)
	}

	bg, err := ParseColor(preset.Style.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("preset %s background: %w", preset.ID, err)
	}
	fg, err := ParseColor(preset.Style.TextColor)
	if err != nil {
		return nil, fmt.Errorf("preset %s text color: %w", preset.ID, err)
	}

	return &Compositor{
		preset:  preset,
		karaoke: presets.IsKaraoke(preset),
		bold:    strings.Contains(strings.ToLower(preset.Style.FontFamily), "bold"),
		bg:      bg,
		fg:      fg,
		faces:   make(map[faceKey]font.Face),
		raster:  vector.NewRasterizer(0, 0),
	}, nil
}

// Close releases cached font faces
func (c *Compositor) Close() error {
	for k, f := range c.faces {
		f.Close()
		delete(c.faces, k)
	}
	return nil
}

// Render draws the caption active at t onto dst and reports whether one was drawn
func (c *Compositor) Render(dst draw.Image, captions []types.Caption, t float64) (bool, error) {
	caption, ok := ActiveCaption(captions, t)
	if !ok {
		return false, nil
	}

	b := dst.Bounds()
	width, height := b.Dx(), b.Dy()

	size := FontSize(c.preset.Style, width)
	face, err := c.face(size)
	if err != nil {
		return false, err
	}
	measure := func(s string) float64 {
		return float64(font.MeasureString(face, s)) / 64
	}

	words := strings.Fields(caption.Text)
	gap := measure(" ")
	if c.karaoke {
		gap = karaokeGapEm * size
	}
	layout := ComputeLayout(c.preset.Style, width, height, words, measure, gap)

	if c.karaoke {
		return true, c.drawKaraoke(dst, layout, face, WordStates(caption.Text, Progress(caption, t)))
	}

	c.fillBox(dst, layout)
	for _, line := range layout.Lines {
		baseline := c.baseline(face, layout, line)
		text := strings.Join(line.Words, " ")
		shadow := 2 * layout.Scale
		drawText(dst, face, shadowColor, line.X+shadow, baseline+shadow, text)
		drawText(dst, face, c.fg, line.X, baseline, text)
	}
	return true, nil
}

func (c *Compositor) drawKaraoke(dst draw.Image, layout Layout, face font.Face, states []WordState) error {
	big, err := c.face(layout.FontSize * karaokeScale)
	if err != nil {
		return err
	}

	idx := 0
	for _, line := range layout.Lines {
		baseline := c.baseline(face, layout, line)
		x := line.X
		for _, w := range line.Words {
			width := float64(font.MeasureString(face, w)) / 64
			if idx < len(states) && states[idx].Sung {
				bigWidth := float64(font.MeasureString(big, w)) / 64
				bx := x - (bigWidth-width)/2
				shadow := 2 * layout.Scale
				drawText(dst, big, sungShadow, bx+shadow, baseline+shadow, w)
				drawText(dst, big, sungColor, bx, baseline, w)
			} else {
				shadow := 1 * layout.Scale
				drawText(dst, face, unsungShadow, x+shadow, baseline+shadow, w)
				drawText(dst, face, unsungColor, x, baseline, w)
			}
			x += width + layout.Gap
			idx++
		}
	}
	return nil
}

// baseline centres the face's ascent+descent inside the line box
func (c *Compositor) baseline(face font.Face, layout Layout, line Line) float64 {
	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64
	return line.Top + (layout.LineHeight-(ascent+descent))/2 + ascent
}

func (c *Compositor) face(size float64) (font.Face, error) {
	key := faceKey{bold: c.bold, size: math.Round(size*2) / 2}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	src := regularFont
	if c.bold {
		src = boldFont
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    key.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	c.faces[key] = f
	return f, nil
}

// fillBox paints the background box, rounding corners when it fits inside the frame
func (c *Compositor) fillBox(dst draw.Image, layout Layout) {
	if c.bg.A == 0 {
		return
	}
	src := image.NewUniform(c.bg)
	box := layout.Box
	r := image.Rect(
		int(math.Floor(box.X)), int(math.Floor(box.Y)),
		int(math.Ceil(box.X+box.W)), int(math.Ceil(box.Y+box.H)),
	)
	bounds := dst.Bounds()
	radius := math.Min(layout.Radius, math.Min(float64(r.Dx()), float64(r.Dy()))/2)

	if radius < 1 || !r.In(bounds) {
		draw.Draw(dst, r.Intersect(bounds), src, image.Point{}, draw.Over)
		return
	}

	w, h := float32(r.Dx()), float32(r.Dy())
	rad := float32(radius)
	z := c.raster
	z.Reset(r.Dx(), r.Dy())
	z.MoveTo(rad, 0)
	z.LineTo(w-rad, 0)
	z.QuadTo(w, 0, w, rad)
	z.LineTo(w, h-rad)
	z.QuadTo(w, h, w-rad, h)
	z.LineTo(rad, h)
	z.QuadTo(0, h, 0, h-rad)
	z.LineTo(0, rad)
	z.QuadTo(0, 0, rad, 0)
	z.ClosePath()
	z.Draw(dst, r, src, image.Point{})
}

func drawText(dst draw.Image, face font.Face, c color.Color, x, y float64, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(s)
}
