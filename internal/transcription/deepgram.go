package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const (
	defaultDeepgramURL     = "https://api.deepgram.com/v1/listen"
	defaultDeepgramModel   = "nova-2"
	defaultDeepgramTimeout = 60 * time.Second
)

// DeepgramConfig captures the settings required to call Deepgram
type DeepgramConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DeepgramProvider is the primary speech-to-text provider
type DeepgramProvider struct {
	cfg        DeepgramConfig
	httpClient *http.Client
}

// NewDeepgramProvider creates a Deepgram provider; a nil client uses http.DefaultClient
func NewDeepgramProvider(cfg DeepgramConfig, httpClient *http.Client) *DeepgramProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepgramURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultDeepgramModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDeepgramTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &DeepgramProvider{cfg: cfg, httpClient: httpClient}
}

// Name implements Provider
func (p *DeepgramProvider) Name() string { return ProviderDeepgram }

// Configured implements Provider
func (p *DeepgramProvider) Configured() bool { return p.cfg.APIKey != "" }

// Transcribe uploads the media file and normalizes paragraphs, utterances or words
func (p *DeepgramProvider) Transcribe(ctx context.Context, mediaPath string) ([]types.Caption, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	file, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat media: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), file)
	if err != nil {
		return nil, fmt.Errorf("failed to build deepgram request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Token "+p.cfg.APIKey)
	// Deepgram handles MP4 containers best when announced as audio
	req.Header.Set("Content-Type", audioContentType(mediaPath))

	log.Printf("Sending %s to Deepgram (%d bytes, model %s)", filepath.Base(mediaPath), info.Size(), p.cfg.Model)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ProviderError{
				Provider: ProviderDeepgram,
				Kind:     KindTimeout,
				Body:     fmt.Sprintf("request timed out after %s", p.cfg.Timeout),
				Err:      err,
			}
		}
		return nil, &ProviderError{Provider: ProviderDeepgram, Kind: KindUpstream, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderDeepgram, Kind: KindUpstream, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindUpstream
		if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusTooManyRequests {
			kind = KindQuotaExceeded
		}
		return nil, &ProviderError{
			Provider:   ProviderDeepgram,
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var parsed DeepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse deepgram response: %w", err)
	}

	captions := NormalizeDeepgram(&parsed)
	log.Printf("Deepgram returned %d captions", len(captions))
	return captions, nil
}

func (p *DeepgramProvider) endpoint() string {
	q := url.Values{}
	q.Set("model", p.cfg.Model)
	q.Set("smart_format", "true")
	q.Set("utterances", "true")
	q.Set("paragraphs", "true")
	q.Set("detect_language", "true")
	q.Set("punctuate", "true")
	return p.cfg.BaseURL + "?" + q.Encode()
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/mp4"
	}
}
