package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeWhisper emulates ffmpeg and python -m whisper by writing their output files
func fakeWhisper(t *testing.T, calls *[]string, whisperJSON string) CommandRunner {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, name)
		switch name {
		case "ffmpeg":
			out := args[len(args)-1]
			return nil, os.WriteFile(out, []byte("RIFF"), 0644)
		case "python":
			var outDir string
			for i, a := range args {
				if a == "--output_dir" {
					outDir = args[i+1]
				}
			}
			audio := args[2]
			base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
			return []byte("done"), os.WriteFile(filepath.Join(outDir, base+".json"), []byte(whisperJSON), 0644)
		}
		return nil, errors.New("unexpected command " + name)
	}
}

func TestWhisperModelName(t *testing.T) {
	tests := map[string]string{
		"ggml-tiny.bin":  "tiny",
		"base":           "base",
		"models/medium":  "medium",
		"large-v3":       "large",
		"":               "small",
		"something-else": "small",
	}
	for in, want := range tests {
		if got := whisperModelName(in); got != want {
			t.Errorf("whisperModelName(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWhisperTranscribe(t *testing.T) {
	tmp := t.TempDir()
	var calls []string
	run := fakeWhisper(t, &calls, `{"text":"hi","language":"en","segments":[
		{"id":0,"start":0.0,"end":1.0,"text":" hi "},
		{"id":1,"start":1.0,"end":1.0,"text":"zero"}
	]}`)

	wt := NewWhisperTranscriber(WhisperConfig{Model: "tiny", TempDir: tmp}, run)
	captions, err := wt.Transcribe(context.Background(), "video.mp4")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if len(calls) != 2 || calls[0] != "ffmpeg" || calls[1] != "python" {
		t.Errorf("commands = %v", calls)
	}
	if len(captions) != 1 || captions[0].Text != "hi" {
		t.Errorf("captions = %+v", captions)
	}

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned, %d entries left", len(entries))
	}
}

func TestWhisperCommandFailure(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "ffmpeg" {
			return nil, os.WriteFile(args[len(args)-1], nil, 0644)
		}
		return []byte("No module named whisper"), errors.New("exit status 1")
	}

	wt := NewWhisperTranscriber(WhisperConfig{TempDir: t.TempDir()}, run)
	_, err := wt.Transcribe(context.Background(), "video.mp4")
	if err == nil || !strings.Contains(err.Error(), "No module named whisper") {
		t.Errorf("Transcribe() error = %v", err)
	}
}

func TestValidateVideoFormat(t *testing.T) {
	tests := map[string]bool{
		"clip.mp4":  true,
		"clip.MOV":  true,
		"clip.webm": true,
		"clip.mp3":  false,
		"clip":      false,
	}
	for in, want := range tests {
		if got := ValidateVideoFormat(in); got != want {
			t.Errorf("ValidateVideoFormat(%s) = %v, want %v", in, got, want)
		}
	}
}
