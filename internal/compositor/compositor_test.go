package compositor

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/codebuildervaibhav/video-captioning/internal/presets"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

var scenario = []types.Caption{
	{Text: "hello", StartTime: 0.0, EndTime: 1.0},
	{Text: "world", StartTime: 1.2, EndTime: 2.0},
}

func TestActiveCaption(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		want string
		ok   bool
	}{
		{"inside first", 0.5, "hello", true},
		{"start inclusive", 0.0, "hello", true},
		{"end inclusive", 1.0, "hello", true},
		{"gap", 1.1, "", false},
		{"inside second", 1.5, "world", true},
		{"after all", 2.5, "", false},
		{"before all", -0.1, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ActiveCaption(scenario, tt.t)
			if ok != tt.ok || got.Text != tt.want {
				t.Errorf("ActiveCaption(%v) = %q, %v; want %q, %v", tt.t, got.Text, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestActiveCaptionFirstMatchWins(t *testing.T) {
	overlapping := []types.Caption{
		{Text: "first", StartTime: 0, EndTime: 2},
		{Text: "second", StartTime: 1, EndTime: 3},
	}
	got, _ := ActiveCaption(overlapping, 1.5)
	if got.Text != "first" {
		t.Errorf("ActiveCaption() = %q, want first", got.Text)
	}
}

func TestProgress(t *testing.T) {
	c := types.Caption{Text: "x", StartTime: 2, EndTime: 4}
	tests := map[float64]float64{1: 0, 2: 0, 3: 0.5, 4: 1, 9: 1}
	for in, want := range tests {
		if got := Progress(c, in); got != want {
			t.Errorf("Progress(%v) = %v, want %v", in, got, want)
		}
	}

	zero := types.Caption{Text: "x", StartTime: 1, EndTime: 1}
	if got := Progress(zero, 1); got != 0 {
		t.Errorf("Progress(zero span, start) = %v, want 0", got)
	}
}

func TestWordStates(t *testing.T) {
	text := "one two three four"

	if n := SungCount(WordStates(text, 0)); n != 0 {
		t.Errorf("progress 0: %d sung, want 0", n)
	}
	if n := SungCount(WordStates(text, 1)); n != 4 {
		t.Errorf("progress 1: %d sung, want 4", n)
	}

	// 0.3*4 = 1.2: word 0 sung, word 1 only 20% through
	states := WordStates(text, 0.3)
	if !states[0].Sung || states[1].Sung {
		t.Errorf("progress 0.3: %+v", states)
	}

	// 0.4*4 = 1.6: word 1 more than half through
	states = WordStates(text, 0.4)
	if SungCount(states) != 2 || !states[1].Sung || states[2].Sung {
		t.Errorf("progress 0.4: %+v", states)
	}

	if got := WordStates("   ", 0.5); len(got) != 0 {
		t.Errorf("blank text produced %d states", len(got))
	}
}

func TestWordStatesMonotonic(t *testing.T) {
	text := "a b c d e f g"
	prev := 0
	for i := 0; i <= 100; i++ {
		n := SungCount(WordStates(text, float64(i)/100))
		if n < prev {
			t.Fatalf("sung count dropped from %d to %d at progress %.2f", prev, n, float64(i)/100)
		}
		prev = n
	}
}

func fixedMeasure(s string) float64 { return float64(len(s)) * 10 }

func TestComputeLayoutAnchors(t *testing.T) {
	style := types.PresetStyle{FontSize: 20, Padding: 10, Position: types.PositionBottom, Alignment: types.AlignCenter}

	l := ComputeLayout(style, 1280, 720, []string{"hello", "world"}, fixedMeasure, 10)
	if l.Scale != 1 || l.FontSize != 20 {
		t.Fatalf("scale=%v font=%v", l.Scale, l.FontSize)
	}
	// one line of 50+10+50 px plus padding
	if l.Box.W != 130 || l.Box.H != 20*1.2+20 {
		t.Errorf("box = %+v", l.Box)
	}
	if l.Box.X != (1280-130)/2.0 {
		t.Errorf("centered X = %v", l.Box.X)
	}
	if l.Box.Y+l.Box.H != 700 {
		t.Errorf("bottom edge = %v, want 700", l.Box.Y+l.Box.H)
	}

	style.Position, style.Alignment = types.PositionTop, types.AlignLeft
	l = ComputeLayout(style, 1280, 720, []string{"hi"}, fixedMeasure, 10)
	if l.Box.X != 20 || l.Box.Y != 20 {
		t.Errorf("top-left box = %+v", l.Box)
	}

	style.Position, style.Alignment = types.PositionCenter, types.AlignRight
	l = ComputeLayout(style, 1280, 720, []string{"hi"}, fixedMeasure, 10)
	if l.Box.X+l.Box.W != 1260 || l.Box.Y != (720-l.Box.H)/2 {
		t.Errorf("center-right box = %+v", l.Box)
	}
}

func TestComputeLayoutScalesWithWidth(t *testing.T) {
	style := types.PresetStyle{FontSize: 24, Padding: 16, BorderRadius: 8}
	l := ComputeLayout(style, 640, 360, []string{"x"}, fixedMeasure, 5)
	if l.Scale != 0.5 || l.FontSize != 12 || l.Padding != 8 || l.Radius != 4 {
		t.Errorf("layout = %+v", l)
	}
}

func TestComputeLayoutWraps(t *testing.T) {
	style := types.PresetStyle{FontSize: 20, Padding: 0}
	words := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		words = append(words, "abcdefghij") // 100px each
	}
	l := ComputeLayout(style, 1280, 720, words, fixedMeasure, 10)

	if len(l.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(l.Lines))
	}
	for i, line := range l.Lines {
		if line.Width > 1280*0.8 {
			t.Errorf("line %d width %v exceeds 80%% of frame", i, line.Width)
		}
	}
	total := 0
	for _, line := range l.Lines {
		total += len(line.Words)
	}
	if total != len(words) {
		t.Errorf("wrapped %d words, want %d", total, len(words))
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"rgba(0, 0, 0, 0.8)", color.NRGBA{A: 204}, false},
		{"rgb(255,0,10)", color.NRGBA{R: 255, B: 10, A: 255}, false},
		{"#FFD700", color.NRGBA{R: 255, G: 215, A: 255}, false},
		{"#fff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"#00000080", color.NRGBA{A: 128}, false},
		{"white", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"transparent", color.NRGBA{}, false},
		{"rgba(1,2)", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"notacolor", color.NRGBA{}, true},
		{"", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseColor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func blankFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 40, G: 90, B: 160, A: 255}), image.Point{}, draw.Src)
	return img
}

func changedPixels(a, b *image.RGBA) int {
	n := 0
	for i := 0; i < len(a.Pix); i += 4 {
		if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
			n++
		}
	}
	return n
}

func TestRenderScenario(t *testing.T) {
	preset, _ := presets.Get(presets.BottomCentered)
	c, err := New(preset)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	frame := blankFrame(640, 360)
	drawn, err := c.Render(frame, scenario, 1.1)
	if err != nil || drawn {
		t.Fatalf("Render(1.1) = %v, %v; want nothing drawn", drawn, err)
	}
	if changedPixels(frame, blankFrame(640, 360)) != 0 {
		t.Error("Render(1.1) modified the frame")
	}

	drawn, err = c.Render(frame, scenario, 0.5)
	if err != nil || !drawn {
		t.Fatalf("Render(0.5) = %v, %v; want caption drawn", drawn, err)
	}
	if changedPixels(frame, blankFrame(640, 360)) == 0 {
		t.Error("Render(0.5) left the frame untouched")
	}

	// bottom preset leaves the top half alone
	top := frame.SubImage(image.Rect(0, 0, 640, 180)).(*image.RGBA)
	ref := blankFrame(640, 360).SubImage(image.Rect(0, 0, 640, 180)).(*image.RGBA)
	for y := 0; y < 180; y++ {
		for x := 0; x < 640; x++ {
			if top.RGBAAt(x, y) != ref.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) changed outside the bottom caption area", x, y)
			}
		}
	}
}

func TestRenderKaraokeProgress(t *testing.T) {
	preset, _ := presets.Get(presets.Karaoke)
	c, err := New(preset)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	caps := []types.Caption{{Text: "sing along now", StartTime: 0, EndTime: 3}}
	goldAt := func(t float64) int {
		frame := blankFrame(640, 360)
		if _, err := c.Render(frame, caps, t); err != nil {
			panic(err)
		}
		n := 0
		for i := 0; i < len(frame.Pix); i += 4 {
			r, g, b := frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2]
			if r > 200 && g > 160 && b < 60 {
				n++
			}
		}
		return n
	}

	if n := goldAt(0); n != 0 {
		t.Errorf("at start %d gold pixels, want 0", n)
	}
	if goldAt(3) == 0 {
		t.Error("at end no gold pixels drawn")
	}
	if goldAt(1.6) >= goldAt(3) {
		t.Error("partial progress should highlight fewer words than full progress")
	}
}

func TestNewRejectsBadColors(t *testing.T) {
	p, _ := presets.Get(presets.TopBar)
	p.Style.TextColor = "nope"
	if _, err := New(p); err == nil {
		t.Error("New() accepted an invalid text color")
	}
}
