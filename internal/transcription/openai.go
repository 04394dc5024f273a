package transcription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const insufficientQuota = "insufficient_quota"

// OpenAIConfig captures the settings required to call the Whisper API
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider is the secondary speech-to-text provider
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI Whisper provider; a nil client uses the library default
func NewOpenAIProvider(cfg OpenAIConfig, httpClient *http.Client) *OpenAIProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIProvider{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Configured implements Provider
func (p *OpenAIProvider) Configured() bool { return p.cfg.APIKey != "" }

// Transcribe requests verbose JSON so segments carry timings
func (p *OpenAIProvider) Transcribe(ctx context.Context, mediaPath string) ([]types.Caption, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}

	log.Printf("Sending %s to OpenAI (model %s)", mediaPath, p.cfg.Model)

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       p.cfg.Model,
		FilePath:    mediaPath,
		Format:      openai.AudioResponseFormatVerboseJSON,
		Temperature: 0,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		seg := Segment{Text: s.Text, Start: At(s.Start)}
		// the client decodes an absent end as zero
		if s.End > 0 {
			seg.End = At(s.End)
		}
		segments = append(segments, seg)
	}

	captions := NormalizeSegments(segments)
	log.Printf("OpenAI returned %d captions", len(captions))
	return captions, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := KindUpstream
		code := fmt.Sprint(apiErr.Code)
		if code == insufficientQuota || apiErr.Type == insufficientQuota ||
			apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			kind = KindQuotaExceeded
		}
		return &ProviderError{
			Provider:   ProviderOpenAI,
			Kind:       kind,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		kind := KindUpstream
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			kind = KindQuotaExceeded
		}
		return &ProviderError{
			Provider:   ProviderOpenAI,
			Kind:       kind,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: ProviderOpenAI, Kind: KindTimeout, Err: err}
	}

	return &ProviderError{Provider: ProviderOpenAI, Kind: KindUpstream, Err: err}
}
