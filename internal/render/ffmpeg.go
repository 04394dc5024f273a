package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Output containers
const (
	FormatWebM = "webm"
	FormatMP4  = "mp4"
)

// FrameSource yields decoded RGBA frames; ReadFrame returns io.EOF at end of video
type FrameSource interface {
	ReadFrame(dst *image.RGBA) error
	Close() error
}

// FrameSink encodes RGBA frames into the output file.
// Close finalizes the file; Abort stops encoding and may be called after Close.
type FrameSink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
	Abort()
}

// Toolchain is the media backend the export driver runs on
type Toolchain interface {
	Probe(ctx context.Context, input string) (VideoInfo, error)
	Decode(ctx context.Context, input string, info VideoInfo) (FrameSource, error)
	Encode(ctx context.Context, input string, info VideoInfo, output, format string) (FrameSink, error)
	ExtractFrame(ctx context.Context, input string, info VideoInfo, t float64) (*image.RGBA, error)
}

// FFmpeg runs ffprobe and ffmpeg subprocesses
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg creates a toolchain; empty paths resolve through PATH
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Probe reads dimensions, frame rate, duration and audio presence
func (f *FFmpeg) Probe(ctx context.Context, input string) (VideoInfo, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		input,
	)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe failed: %v\nOutput: %s", err, stderr.String())
	}
	return parseProbe(out)
}

// Decode starts ffmpeg writing raw RGBA frames at the probed frame rate
func (f *FFmpeg) Decode(ctx context.Context, input string, info VideoInfo) (FrameSource, error) {
	src := &ffmpegSource{frameSize: info.Width * info.Height * 4}
	src.cmd = exec.CommandContext(ctx, f.FFmpegPath,
		"-v", "error",
		"-i", input,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", formatFPS(info.FPS),
		"-",
	)
	src.cmd.Stderr = &src.stderr

	stdout, err := src.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open decoder pipe: %w", err)
	}
	src.stdout = stdout

	if err := src.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start decoder: %w", err)
	}
	return src, nil
}

// Encode starts ffmpeg reading raw RGBA frames from stdin and the source's audio, if any
func (f *FFmpeg) Encode(ctx context.Context, input string, info VideoInfo, output, format string) (FrameSink, error) {
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", formatFPS(info.FPS),
		"-i", "-",
		"-i", input,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
	}
	args = append(args, codecArgs(format)...)
	args = append(args, "-shortest", output)

	sink := &ffmpegSink{}
	sink.cmd = exec.CommandContext(ctx, f.FFmpegPath, args...)
	sink.cmd.Stderr = &sink.stderr

	stdin, err := sink.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open encoder pipe: %w", err)
	}
	sink.stdin = stdin

	if err := sink.cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder unavailable: %w", err)
	}
	return sink, nil
}

// ExtractFrame decodes the single frame at t seconds
func (f *FFmpeg) ExtractFrame(ctx context.Context, input string, info VideoInfo, t float64) (*image.RGBA, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(t, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %v\nOutput: %s", err, stderr.String())
	}

	size := info.Width * info.Height * 4
	if len(out) < size {
		return nil, fmt.Errorf("no frame at %.3fs", t)
	}
	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	copy(img.Pix, out[:size])
	return img, nil
}

func codecArgs(format string) []string {
	if format == FormatMP4 {
		return []string{
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
			"-c:a", "aac", "-b:a", "160k",
			"-movflags", "+faststart",
		}
	}
	return []string{
		"-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "32",
		"-deadline", "realtime", "-row-mt", "1",
		"-c:a", "libopus",
	}
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

// stderrBuffer collects subprocess diagnostics; exec copies into it from its own goroutine
type stderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *stderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}

type ffmpegSource struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    stderrBuffer
	frameSize int
	eof       bool
}

func (s *ffmpegSource) ReadFrame(dst *image.RGBA) error {
	if len(dst.Pix) < s.frameSize {
		return fmt.Errorf("frame buffer too small: %d < %d", len(dst.Pix), s.frameSize)
	}
	_, err := io.ReadFull(s.stdout, dst.Pix[:s.frameSize])
	if errors.Is(err, io.EOF) {
		s.eof = true
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("failed to decode frame: %v (%s)", err, s.stderr.String())
	}
	return nil
}

func (s *ffmpegSource) Close() error {
	if s.eof {
		if err := s.cmd.Wait(); err != nil {
			return fmt.Errorf("decoder failed: %v (%s)", err, s.stderr.String())
		}
		return nil
	}
	// stopped early: the remaining frames are not wanted
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr stderrBuffer
	once   sync.Once
	waited bool
}

func (s *ffmpegSink) WriteFrame(img *image.RGBA) error {
	if _, err := s.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("failed to encode frame: %v (%s)", err, s.stderr.String())
	}
	return nil
}

func (s *ffmpegSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close encoder input: %w", err)
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("encoder failed: %v (%s)", err, s.stderr.String())
	}
	return nil
}

func (s *ffmpegSink) Abort() {
	s.once.Do(func() {
		_ = s.stdin.Close()
		if s.waited {
			return
		}
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	})
}
