package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload = "upload"
	SourceGDrive = "gdrive"
	SourceURL    = "url"
)

// Caption positions and alignments
const (
	PositionBottom = "bottom"
	PositionTop    = "top"
	PositionCenter = "center"

	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Caption is a timed text span with inclusive start/end bounds in seconds
type Caption struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Duration returns the caption span in seconds
func (c Caption) Duration() float64 {
	return c.EndTime - c.StartTime
}

// PresetStyle holds the visual configuration of a caption overlay
type PresetStyle struct {
	Position        string  `json:"position"`
	Alignment       string  `json:"alignment"`
	BackgroundColor string  `json:"backgroundColor"`
	TextColor       string  `json:"textColor"`
	FontSize        float64 `json:"fontSize"`
	Padding         float64 `json:"padding"`
	BorderRadius    float64 `json:"borderRadius"`
	FontFamily      string  `json:"fontFamily"`
}

// Preset is a named, immutable caption style
type Preset struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Style PresetStyle `json:"style"`
}

// ExportJob carries everything the renderer needs to burn captions into a video.
// It is handed directly from the export handler to the render queue.
type ExportJob struct {
	ID        string    `json:"id"`
	VideoURL  string    `json:"videoUrl"`
	Captions  []Caption `json:"captions"`
	Preset    Preset    `json:"preset"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptionResult represents the output of a speech-to-text run
type TranscriptionResult struct {
	Provider string
	Captions []Caption
	Fallback bool
}

// ExportRecord is the persisted status of an export job
type ExportRecord struct {
	JobID        string    `json:"job_id"`
	VideoURL     string    `json:"video_url"`
	PresetID     string    `json:"preset_id"`
	CaptionCount int       `json:"caption_count"`
	Status       string    `json:"status"`
	OutputPath   string    `json:"output_path"`
	GDriveURL    string    `json:"gdrive_url"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Progress is a render progress event for one export job
type Progress struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	Frame       int     `json:"frame"`
	TotalFrames int     `json:"total_frames"`
	Percent     float64 `json:"percent"`
	Error       string  `json:"error,omitempty"`
}
