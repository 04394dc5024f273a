package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

var (
	// ErrInvalidSource is returned for links that are neither Drive links nor http(s) URLs
	ErrInvalidSource = errors.New("invalid video source")
	// ErrNotAccessible is returned when the remote file cannot be fetched
	ErrNotAccessible = errors.New("file not accessible (may be private or doesn't exist)")
	// ErrTooLarge is returned when the remote file exceeds the size limit
	ErrTooLarge = errors.New("file too large")
)

var (
	driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveBareID   = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// ExtractDriveFileID extracts the file ID from the common Google Drive link formats
func ExtractDriveFileID(link string) string {
	link = strings.TrimSpace(link)

	if m := driveBareID.FindStringSubmatch(link); len(m) > 1 {
		return m[1]
	}

	u, err := url.Parse(link)
	if err != nil || !strings.HasSuffix(u.Hostname(), "drive.google.com") {
		return ""
	}

	// https://drive.google.com/file/d/{ID}/view
	if m := driveFilePath.FindStringSubmatch(link); len(m) > 1 {
		return m[1]
	}

	// https://drive.google.com/open?id={ID}
	if m := driveIDParam.FindStringSubmatch(link); len(m) > 1 {
		return m[1]
	}

	return ""
}

// Imported describes a video fetched into the media directory
type Imported struct {
	Name         string
	Path         string
	OriginalName string
	Source       string
}

// Importer downloads remote videos into local media storage
type Importer struct {
	local    *LocalStorage
	drive    *DriveClient
	client   *http.Client
	maxBytes int64
}

// NewImporter creates an importer; drive may be nil, in which case Drive links
// are fetched through the public download endpoint
func NewImporter(local *LocalStorage, drive *DriveClient, client *http.Client, maxBytes int64) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Importer{
		local:    local,
		drive:    drive,
		client:   client,
		maxBytes: maxBytes,
	}
}

// Import fetches link (Drive share link, Drive file ID or direct http(s) URL)
func (im *Importer) Import(ctx context.Context, link string) (*Imported, error) {
	if id := ExtractDriveFileID(link); id != "" {
		return im.importDrive(ctx, id)
	}

	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, link)
	}

	return im.fetch(ctx, u.String(), path.Base(u.Path), types.SourceURL)
}

func (im *Importer) importDrive(ctx context.Context, fileID string) (*Imported, error) {
	if im.drive == nil {
		log.Printf("Downloading from Google Drive: %s", fileID)
		downloadURL := fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID)
		return im.fetch(ctx, downloadURL, "", types.SourceGDrive)
	}

	log.Printf("Downloading from Google Drive API: %s", fileID)
	tmp, err := os.CreateTemp(im.local.MediaDir(), "import-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create download file: %v", err)
	}
	tmp.Close()

	original, err := im.drive.Download(ctx, fileID, tmp.Name(), im.maxBytes)
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	name, full := im.local.NewMediaPath(extensionFor(original, ""))
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store download: %v", err)
	}
	return &Imported{Name: name, Path: full, OriginalName: original, Source: types.SourceGDrive}, nil
}

func (im *Importer) fetch(ctx context.Context, rawURL, original, source string) (*Imported, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w (status %d)", ErrNotAccessible, resp.StatusCode)
	}
	if im.maxBytes > 0 && resp.ContentLength > im.maxBytes {
		return nil, ErrTooLarge
	}

	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		original = params["filename"]
	}

	name, full := im.local.NewMediaPath(extensionFor(original, resp.Header.Get("Content-Type")))
	if err := writeBody(full, resp.Body, im.maxBytes); err != nil {
		return nil, err
	}
	return &Imported{Name: name, Path: full, OriginalName: original, Source: source}, nil
}

// extensionFor picks a file extension from the original name, then the content type
func extensionFor(original, contentType string) string {
	if ext := strings.ToLower(path.Ext(original)); len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "video/webm":
			return ".webm"
		case "video/quicktime":
			return ".mov"
		case "video/x-matroska":
			return ".mkv"
		case "video/mp4":
			return ".mp4"
		}
	}
	return ".mp4"
}

// writeBody streams r to dst, removing dst if the copy fails or exceeds limit (0 = unlimited)
func writeBody(dst string, r io.Reader, limit int64) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to save downloaded file: %v", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(out, src)
	closeErr := out.Close()

	switch {
	case err != nil:
		os.Remove(dst)
		return fmt.Errorf("failed to write downloaded file: %v", err)
	case closeErr != nil:
		os.Remove(dst)
		return fmt.Errorf("failed to write downloaded file: %v", closeErr)
	case limit > 0 && n > limit:
		os.Remove(dst)
		return ErrTooLarge
	}
	return nil
}
