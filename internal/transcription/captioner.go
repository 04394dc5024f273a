package transcription

import (
	"context"
	"fmt"
	"log"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Captioner selects a provider from an ordered strategy list and
// falls back to a local transcriber when that provider's quota is exhausted.
type Captioner struct {
	providers []Provider
	fallback  Provider
}

// NewCaptioner creates a captioner. providers are tried in order of preference;
// fallback may be nil.
func NewCaptioner(providers []Provider, fallback Provider) *Captioner {
	return &Captioner{
		providers: providers,
		fallback:  fallback,
	}
}

// Select returns the first configured provider
func (c *Captioner) Select() (Provider, error) {
	for _, p := range c.providers {
		if p != nil && p.Configured() {
			return p, nil
		}
	}
	return nil, ErrNotConfigured
}

// Generate transcribes the media file into captions.
// Transient failures are not retried; only a quota failure triggers the fallback.
func (c *Captioner) Generate(ctx context.Context, mediaPath string) (*types.TranscriptionResult, error) {
	provider, err := c.Select()
	if err != nil {
		return nil, err
	}

	captions, err := provider.Transcribe(ctx, mediaPath)
	if err == nil {
		return &types.TranscriptionResult{Provider: provider.Name(), Captions: captions}, nil
	}

	if !IsQuotaExceeded(err) || c.fallback == nil {
		return nil, err
	}

	log.Printf("%s quota exceeded, falling back to %s", provider.Name(), c.fallback.Name())

	captions, fallbackErr := c.fallback.Transcribe(ctx, mediaPath)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w; local fallback failed: %v", err, fallbackErr)
	}

	return &types.TranscriptionResult{
		Provider: c.fallback.Name(),
		Captions: captions,
		Fallback: true,
	}, nil
}

// BuildStrategy orders the known providers by the configured names.
// Unknown names are logged and skipped.
func BuildStrategy(order []string, known map[string]Provider) []Provider {
	out := make([]Provider, 0, len(order))
	for _, name := range order {
		p, ok := known[name]
		if !ok {
			log.Printf("WARNING: unknown transcription provider %q in configuration", name)
			continue
		}
		out = append(out, p)
	}
	return out
}
