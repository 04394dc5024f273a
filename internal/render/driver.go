// Package render burns captions into a video by compositing every decoded
// frame and re-encoding it together with the source audio.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/codebuildervaibhav/video-captioning/internal/compositor"
	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// ErrNoFrames is returned when the source decodes to zero frames
var ErrNoFrames = errors.New("source video produced no frames")

// ProgressFunc receives the number of frames written and the estimated total (0 if unknown)
type ProgressFunc func(frame, total int)

// Driver runs exports on a Toolchain
type Driver struct {
	tools  Toolchain
	format string
}

// NewDriver creates an export driver producing format (webm or mp4)
func NewDriver(tools Toolchain, format string) *Driver {
	if format != FormatMP4 {
		format = FormatWebM
	}
	return &Driver{tools: tools, format: format}
}

// Format returns the output container
func (d *Driver) Format() string {
	return d.format
}

// Export plays input from the start, draws the active caption onto each frame
// and writes the result to output. Any failure removes the partial output.
func (d *Driver) Export(ctx context.Context, job types.ExportJob, input, output string, progress ProgressFunc) (err error) {
	comp, err := compositor.New(job.Preset)
	if err != nil {
		return err
	}
	defer comp.Close()

	info, err := d.tools.Probe(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to load video metadata: %w", err)
	}

	src, err := d.tools.Decode(ctx, input, info)
	if err != nil {
		return err
	}
	srcClosed := false
	defer func() {
		if !srcClosed {
			src.Close()
		}
	}()

	sink, err := d.tools.Encode(ctx, input, info, output, d.format)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sink.Abort()
			os.Remove(output)
		}
	}()

	total := info.TotalFrames()
	frame := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	written := 0

	for {
		if err = ctx.Err(); err != nil {
			return fmt.Errorf("export cancelled: %w", err)
		}

		if rerr := src.ReadFrame(frame); rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			err = rerr
			return err
		}

		t := float64(written) / info.FPS
		if _, err = comp.Render(frame, job.Captions, t); err != nil {
			return err
		}
		if err = sink.WriteFrame(frame); err != nil {
			return err
		}

		written++
		if progress != nil {
			progress(written, total)
		}
	}

	// a decoder that dies between frames reports EOF; only its exit status tells
	srcClosed = true
	if err = src.Close(); err != nil {
		return err
	}

	if written == 0 {
		err = ErrNoFrames
		return err
	}

	if err = sink.Close(); err != nil {
		return err
	}
	return nil
}

// Preview renders the caption overlay on the single frame at t and returns it as PNG
func (d *Driver) Preview(ctx context.Context, job types.ExportJob, input string, t float64) ([]byte, error) {
	comp, err := compositor.New(job.Preset)
	if err != nil {
		return nil, err
	}
	defer comp.Close()

	info, err := d.tools.Probe(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to load video metadata: %w", err)
	}
	if t < 0 {
		t = 0
	}
	if info.Duration > 0 && t > info.Duration {
		t = info.Duration
	}

	frame, err := d.tools.ExtractFrame(ctx, input, info, t)
	if err != nil {
		return nil, err
	}
	if _, err := comp.Render(frame, job.Captions, t); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
