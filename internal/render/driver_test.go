package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/video-captioning/internal/presets"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

var bg = color.RGBA{R: 10, G: 20, B: 30, A: 255}

type fakeSource struct {
	frames   int
	served   int
	failAt   int
	closed   bool
	closeErr error
}

func (s *fakeSource) ReadFrame(dst *image.RGBA) error {
	if s.failAt > 0 && s.served == s.failAt {
		return errors.New("corrupt frame")
	}
	if s.served >= s.frames {
		return io.EOF
	}
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = bg.R, bg.G, bg.B, bg.A
	}
	s.served++
	return nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return s.closeErr
}

type fakeSink struct {
	path     string
	frames   []*image.RGBA
	closed   bool
	aborted  bool
	closeErr error
}

func (s *fakeSink) WriteFrame(img *image.RGBA) error {
	cp := image.NewRGBA(img.Bounds())
	copy(cp.Pix, img.Pix)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return s.closeErr
}

func (s *fakeSink) Abort() {
	s.aborted = true
}

type fakeTools struct {
	info     VideoInfo
	probeErr error
	source   *fakeSource
	sink     *fakeSink
	format   string
}

func (f *fakeTools) Probe(ctx context.Context, input string) (VideoInfo, error) {
	return f.info, f.probeErr
}

func (f *fakeTools) Decode(ctx context.Context, input string, info VideoInfo) (FrameSource, error) {
	return f.source, nil
}

func (f *fakeTools) Encode(ctx context.Context, input string, info VideoInfo, output, format string) (FrameSink, error) {
	f.format = format
	f.sink.path = output
	// the real encoder creates the file as soon as it starts
	if err := os.WriteFile(output, []byte("partial"), 0644); err != nil {
		return nil, err
	}
	return f.sink, nil
}

func (f *fakeTools) ExtractFrame(ctx context.Context, input string, info VideoInfo, t float64) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	src := &fakeSource{frames: 1}
	src.ReadFrame(img)
	return img, nil
}

func newJob(t *testing.T) types.ExportJob {
	t.Helper()
	p, err := presets.Get(presets.BottomCentered)
	if err != nil {
		t.Fatal(err)
	}
	return types.ExportJob{
		ID:       "job-1",
		VideoURL: "/media/in.mp4",
		Preset:   p,
		Captions: []types.Caption{
			{Text: "hello", StartTime: 0.0, EndTime: 1.0},
			{Text: "world", StartTime: 1.2, EndTime: 2.0},
		},
	}
}

func isBlank(img *image.RGBA) bool {
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != bg.R || img.Pix[i+1] != bg.G || img.Pix[i+2] != bg.B {
			return false
		}
	}
	return true
}

func TestExportComposesEveryFrame(t *testing.T) {
	// 10 fps over 2.5s: frame i is at t = i/10
	tools := &fakeTools{
		info:   VideoInfo{Width: 320, Height: 180, FPS: 10, Duration: 2.5},
		source: &fakeSource{frames: 25},
		sink:   &fakeSink{},
	}
	d := NewDriver(tools, "")
	out := filepath.Join(t.TempDir(), "out.webm")

	var calls, lastTotal int
	err := d.Export(context.Background(), newJob(t), "in.mp4", out, func(frame, total int) {
		calls++
		lastTotal = total
		if frame != calls {
			t.Errorf("progress frame = %d, want %d", frame, calls)
		}
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if tools.format != FormatWebM {
		t.Errorf("format = %q, want webm default", tools.format)
	}
	if len(tools.sink.frames) != 25 || calls != 25 || lastTotal != 25 {
		t.Fatalf("frames=%d calls=%d total=%d", len(tools.sink.frames), calls, lastTotal)
	}
	if !tools.sink.closed || tools.sink.aborted {
		t.Errorf("sink closed=%v aborted=%v", tools.sink.closed, tools.sink.aborted)
	}
	if !tools.source.closed {
		t.Error("source not closed")
	}

	// 0.5s shows "hello", 1.1s is in the gap, 1.5s shows "world", 2.4s is past the end
	cases := map[int]bool{5: true, 11: false, 15: true, 24: false}
	for idx, wantCaption := range cases {
		if blank := isBlank(tools.sink.frames[idx]); blank == wantCaption {
			t.Errorf("frame %d (t=%.1f): caption drawn = %v, want %v", idx, float64(idx)/10, !blank, wantCaption)
		}
	}

	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing after success: %v", err)
	}
}

func TestExportRemovesPartialOutputOnFailure(t *testing.T) {
	tools := &fakeTools{
		info:   VideoInfo{Width: 64, Height: 36, FPS: 30, Duration: 1},
		source: &fakeSource{frames: 30, failAt: 7},
		sink:   &fakeSink{},
	}
	out := filepath.Join(t.TempDir(), "out.webm")

	err := NewDriver(tools, FormatWebM).Export(context.Background(), newJob(t), "in.mp4", out, nil)
	if err == nil {
		t.Fatal("Export() succeeded with a corrupt source")
	}
	if !tools.sink.aborted {
		t.Error("sink not aborted")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("partial output left behind: %v", statErr)
	}
}

func TestExportDecoderExitAfterLastFrame(t *testing.T) {
	// the decoder died between frames: reads end cleanly, the exit status does not
	tools := &fakeTools{
		info:   VideoInfo{Width: 64, Height: 36, FPS: 30, Duration: 10},
		source: &fakeSource{frames: 3, closeErr: errors.New("decoder failed: exit status 1 (Invalid data found)")},
		sink:   &fakeSink{},
	}
	out := filepath.Join(t.TempDir(), "out.webm")

	err := NewDriver(tools, FormatWebM).Export(context.Background(), newJob(t), "in.mp4", out, nil)
	if err == nil {
		t.Fatal("Export() succeeded with a truncated source")
	}
	if tools.sink.closed {
		t.Error("truncated output was finalized")
	}
	if !tools.sink.aborted {
		t.Error("sink not aborted")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("truncated output left behind: %v", statErr)
	}
}

func TestExportEncoderFinalizeFailure(t *testing.T) {
	tools := &fakeTools{
		info:   VideoInfo{Width: 64, Height: 36, FPS: 30, Duration: 0.1},
		source: &fakeSource{frames: 3},
		sink:   &fakeSink{closeErr: errors.New("muxer failed")},
	}
	out := filepath.Join(t.TempDir(), "out.mp4")

	err := NewDriver(tools, FormatMP4).Export(context.Background(), newJob(t), "in.mp4", out, nil)
	if err == nil {
		t.Fatal("Export() ignored the encoder failure")
	}
	if tools.format != FormatMP4 {
		t.Errorf("format = %q, want mp4", tools.format)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output kept after encoder failure")
	}
}

func TestExportCancelled(t *testing.T) {
	tools := &fakeTools{
		info:   VideoInfo{Width: 64, Height: 36, FPS: 30, Duration: 1},
		source: &fakeSource{frames: 30},
		sink:   &fakeSink{},
	}
	out := filepath.Join(t.TempDir(), "out.webm")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDriver(tools, FormatWebM).Export(ctx, newJob(t), "in.mp4", out, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Export() error = %v, want context.Canceled", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output kept after cancel")
	}
}

func TestExportNoFrames(t *testing.T) {
	tools := &fakeTools{
		info:   VideoInfo{Width: 64, Height: 36, FPS: 30},
		source: &fakeSource{},
		sink:   &fakeSink{},
	}
	out := filepath.Join(t.TempDir(), "out.webm")

	err := NewDriver(tools, FormatWebM).Export(context.Background(), newJob(t), "in.mp4", out, nil)
	if !errors.Is(err, ErrNoFrames) {
		t.Fatalf("Export() error = %v, want ErrNoFrames", err)
	}
}

func TestExportProbeFailure(t *testing.T) {
	tools := &fakeTools{probeErr: errors.New("not a video")}
	err := NewDriver(tools, FormatWebM).Export(context.Background(), newJob(t), "in.mp4", filepath.Join(t.TempDir(), "x.webm"), nil)
	if err == nil {
		t.Fatal("Export() succeeded without metadata")
	}
}

func TestPreview(t *testing.T) {
	tools := &fakeTools{info: VideoInfo{Width: 320, Height: 180, FPS: 30, Duration: 3}}
	d := NewDriver(tools, FormatWebM)

	data, err := d.Preview(context.Background(), newJob(t), "in.mp4", 0.5)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 180 {
		t.Errorf("preview size = %v", img.Bounds())
	}

	rgba := image.NewRGBA(img.Bounds())
	for y := 0; y < 180; y++ {
		for x := 0; x < 320; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	if isBlank(rgba) {
		t.Error("preview at 0.5s has no caption")
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "duration": "9.9"},
			{"codec_type": "audio"}
		],
		"format": {"duration": "10.010000"}
	}`)
	info, err := parseProbe(data)
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 || !info.HasAudio {
		t.Errorf("info = %+v", info)
	}
	if info.FPS < 29.97 || info.FPS > 29.98 {
		t.Errorf("fps = %v", info.FPS)
	}
	if info.Duration != 10.01 {
		t.Errorf("duration = %v, want container duration", info.Duration)
	}
	if info.TotalFrames() != 300 {
		t.Errorf("TotalFrames() = %d", info.TotalFrames())
	}
}

func TestParseProbeRotated(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		width  int
		height int
	}{
		{name: "display matrix", stream: `"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]`, width: 1080, height: 1920},
		{name: "rotate tag", stream: `"tags":{"rotate":"270"}`, width: 1080, height: 1920},
		{name: "upside down", stream: `"tags":{"rotate":"180"}`, width: 1920, height: 1080},
		{name: "no rotation", stream: `"tags":{}`, width: 1920, height: 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"30/1",` + tt.stream + `}],"format":{"duration":"2"}}`)
			info, err := parseProbe(data)
			if err != nil {
				t.Fatalf("parseProbe() error = %v", err)
			}
			if info.Width != tt.width || info.Height != tt.height {
				t.Errorf("size = %dx%d, want %dx%d", info.Width, info.Height, tt.width, tt.height)
			}
		})
	}
}

func TestParseProbeFallbacks(t *testing.T) {
	// webm from MediaRecorder often reports no rate and no duration
	info, err := parseProbe([]byte(`{"streams":[{"codec_type":"video","width":640,"height":480,"avg_frame_rate":"0/0","r_frame_rate":"1000/0"}],"format":{}}`))
	if err != nil {
		t.Fatalf("parseProbe() error = %v", err)
	}
	if info.FPS != DefaultFPS || info.HasAudio || info.TotalFrames() != 0 {
		t.Errorf("info = %+v", info)
	}

	bad := []string{
		`not json`,
		`{"streams":[{"codec_type":"audio"}]}`,
		`{"streams":[{"codec_type":"video","width":0,"height":0}]}`,
	}
	for _, b := range bad {
		if _, err := parseProbe([]byte(b)); err == nil {
			t.Errorf("parseProbe(%s) succeeded", b)
		}
	}
}

func TestCodecArgs(t *testing.T) {
	if args := codecArgs(FormatMP4); args[1] != "libx264" {
		t.Errorf("mp4 codec = %v", args)
	}
	if args := codecArgs(FormatWebM); args[1] != "libvpx-vp9" {
		t.Errorf("webm codec = %v", args)
	}
}
