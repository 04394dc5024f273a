package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// MediaPrefix is the URL path source videos are served under
const MediaPrefix = "/media/"

// ErrUnknownVideo is returned when a video URL does not point at a stored media file
var ErrUnknownVideo = errors.New("video not found")

// LocalStorage handles media, export requests and rendered outputs on the local filesystem
type LocalStorage struct {
	outputDir string
	mediaDir  string
	exportDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir, mediaDir, exportDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		mediaDir:  mediaDir,
		exportDir: exportDir,
	}
}

// EnsureDirs creates the storage directories
func (ls *LocalStorage) EnsureDirs() error {
	for _, dir := range []string{ls.outputDir, ls.mediaDir, ls.exportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %v", dir, err)
		}
	}
	return nil
}

// MediaDir returns the directory source videos are kept in
func (ls *LocalStorage) MediaDir() string {
	return ls.mediaDir
}

// NewMediaPath allocates a unique media file name with the given extension
func (ls *LocalStorage) NewMediaPath(ext string) (name, fullPath string) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name = uuid.New().String() + ext
	return name, filepath.Join(ls.mediaDir, name)
}

// MediaURL returns the URL a stored media file is served at
func MediaURL(name string) string {
	return MediaPrefix + name
}

// ResolveVideo maps a video URL (/media/<name>, optionally absolute) to its file on disk
func (ls *LocalStorage) ResolveVideo(videoURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownVideo, err)
	}
	p := u.Path
	if !strings.HasPrefix(p, MediaPrefix) {
		return "", fmt.Errorf("%w: %s", ErrUnknownVideo, videoURL)
	}

	name := path.Base(path.Clean(p))
	if name == "." || name == "/" || name == "media" {
		return "", fmt.Errorf("%w: %s", ErrUnknownVideo, videoURL)
	}

	full := filepath.Join(ls.mediaDir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrUnknownVideo, videoURL)
	}
	return full, nil
}

// SaveExportRequest writes the export request as indented JSON and returns its path
func (ls *LocalStorage) SaveExportRequest(job types.ExportJob) (string, error) {
	if err := os.MkdirAll(ls.exportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %v", err)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export request: %v", err)
	}

	exportPath := filepath.Join(ls.exportDir, fmt.Sprintf("export-%d.json", job.Timestamp.UnixMilli()))
	if err := os.WriteFile(exportPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save export request: %v", err)
	}
	return exportPath, nil
}

// OutputPath returns the dated path a rendered video is written to, creating its directory.
// Layout: outputs/2025/01/23/20250123_143022_<job>.webm
func (ls *LocalStorage) OutputPath(jobID, format string, now time.Time) (string, error) {
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	name := fmt.Sprintf("%s_%s.%s", now.Format("20060102_150405"), sanitizeFilename(jobID), format)
	return filepath.Join(dateDir, name), nil
}

// sanitizeFilename replaces path separators and reserved characters and limits the length
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 32 {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	if result == "" || result == "." || result == ".." {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
