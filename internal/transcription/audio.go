package transcription

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// CommandRunner executes a subprocess and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExtractAudio converts a video or audio file to 16kHz mono WAV
func ExtractAudio(ctx context.Context, run CommandRunner, ffmpegPath, tempDir, inputPath string) (string, error) {
	if run == nil {
		run = execRunner
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	output, err := run(ctx, ffmpegPath,
		"-i", inputPath,
		"-vn",               // drop video
		"-ar", "16000",      // 16kHz sample rate
		"-ac", "1",          // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",                // Overwrite output
		outputPath,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// ValidateVideoFormat checks if the upload has a container we can transcribe and render
func ValidateVideoFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp4", ".m4v", ".mov", ".webm", ".mkv"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
