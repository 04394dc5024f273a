package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// WhisperConfig configures the local Whisper CLI
type WhisperConfig struct {
	Model      string
	Language   string
	Python     string
	FFmpegPath string
	TempDir    string
}

// WhisperTranscriber wraps Python's OpenAI Whisper for offline transcription.
// It is used when the configured cloud provider reports an exhausted quota.
type WhisperTranscriber struct {
	modelName string
	language  string
	python    string
	ffmpeg    string
	tempDir   string
	run       CommandRunner
	mu        sync.Mutex // one transcription at a time
}

// NewWhisperTranscriber creates a transcriber using Python Whisper
func NewWhisperTranscriber(cfg WhisperConfig, run CommandRunner) *WhisperTranscriber {
	if run == nil {
		run = execRunner
	}
	python := cfg.Python
	if python == "" {
		python = "python"
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	modelName := whisperModelName(cfg.Model)
	log.Printf("Local Whisper fallback configured with model: %s", modelName)

	return &WhisperTranscriber{
		modelName: modelName,
		language:  cfg.Language,
		python:    python,
		ffmpeg:    cfg.FFmpegPath,
		tempDir:   tempDir,
		run:       run,
	}
}

// whisperModelName maps a model name or ggml path (e.g. "ggml-small.bin") to a Whisper model
func whisperModelName(model string) string {
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(model, name) {
			return name
		}
	}
	return "small"
}

// Name implements Provider
func (wt *WhisperTranscriber) Name() string { return ProviderWhisper }

// Configured implements Provider; availability is verified on first run
func (wt *WhisperTranscriber) Configured() bool { return true }

// Transcribe extracts audio and runs python -m whisper on it
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, mediaPath string) ([]types.Caption, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	audioPath, err := ExtractAudio(ctx, wt.run, wt.ffmpeg, wt.tempDir, mediaPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(audioPath)

	outputDir, err := os.MkdirTemp(wt.tempDir, "whisper_output_")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := []string{"-m", "whisper",
		audioPath,
		"--model", wt.modelName,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--fp16", "False", // CPU compatibility
	}
	if wt.language != "" {
		args = append(args, "--language", wt.language)
	}

	log.Printf("Transcribing with local Whisper: %s", filepath.Base(mediaPath))

	output, err := wt.run(ctx, wt.python, args...)
	if err != nil {
		return nil, &ProviderError{
			Provider: ProviderWhisper,
			Kind:     KindUpstream,
			Body:     fmt.Sprintf("%v: %s", err, strings.TrimSpace(string(output))),
			Err:      err,
		}
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var whisperOutput WhisperOutput
	if err := json.Unmarshal(jsonData, &whisperOutput); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	captions := NormalizeSegments(whisperOutput.Segments)
	log.Printf("Local Whisper completed: %d captions (language %s)", len(captions), whisperOutput.Language)
	return captions, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}
