package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultFPS is used when the source does not report a usable frame rate
const DefaultFPS = 30.0

// VideoInfo is the metadata the export loop needs before the first frame
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
	HasAudio bool
}

// TotalFrames estimates the frame count from duration and frame rate
func (v VideoInfo) TotalFrames() int {
	if v.Duration <= 0 || v.FPS <= 0 {
		return 0
	}
	// tolerate float error in products like 10.01 * 30000/1001
	return int(math.Ceil(v.Duration*v.FPS - 1e-6))
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// rotation returns the display rotation in degrees; the display matrix wins over the legacy tag
func (s probeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return int(math.Round(sd.Rotation))
		}
	}
	return int(math.Round(parseFloat(s.Tags.Rotate)))
}

// parseProbe reads ffprobe -print_format json -show_streams -show_format output
func parseProbe(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var (
		info  VideoInfo
		found bool
	)
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if found {
				continue
			}
			found = true
			info.Width = s.Width
			info.Height = s.Height
			// ffmpeg autorotates decoded frames, so the frame size follows the display orientation
			if r := s.rotation() % 180; r == 90 || r == -90 {
				info.Width, info.Height = s.Height, s.Width
			}
			info.FPS = parseRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseRate(s.RFrameRate)
			}
			info.Duration = parseFloat(s.Duration)
		case "audio":
			info.HasAudio = true
		}
	}

	if !found {
		return VideoInfo{}, fmt.Errorf("no video stream found")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("video dimensions unavailable (%dx%d)", info.Width, info.Height)
	}
	if d := parseFloat(out.Format.Duration); d > 0 {
		info.Duration = d
	}
	if info.FPS <= 0 || info.FPS > 240 {
		info.FPS = DefaultFPS
	}
	return info, nil
}

// parseRate reads "30000/1001" or "25"
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n := parseFloat(num)
	if !ok {
		return n
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
