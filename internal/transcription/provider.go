package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Provider names accepted in the configured strategy list
const (
	ProviderDeepgram = "deepgram"
	ProviderOpenAI   = "openai"
	ProviderWhisper  = "whisper-local"
)

// ErrNotConfigured is returned when no provider in the strategy list has credentials
var ErrNotConfigured = errors.New("no speech-to-text provider configured: add DEEPGRAM_API_KEY or OPENAI_API_KEY to .env.local")

// Provider converts a media file into captions
type Provider interface {
	// Name identifies the provider in logs and responses
	Name() string

	// Configured reports whether the provider has what it needs to run
	Configured() bool

	// Transcribe sends the media file and normalizes the response
	Transcribe(ctx context.Context, mediaPath string) ([]types.Caption, error)
}

// ErrorKind classifies provider failures
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindQuotaExceeded
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTimeout:
		return "timeout"
	default:
		return "upstream"
	}
}

// ProviderError carries an upstream failure with the provider's own error text
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	detail := strings.TrimSpace(e.Body)
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s transcription failed: %s", displayName(e.Provider), detail)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded reports whether err is a provider quota failure
func IsQuotaExceeded(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindQuotaExceeded
}

func displayName(provider string) string {
	switch provider {
	case ProviderDeepgram:
		return "Deepgram"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderWhisper:
		return "Local Whisper"
	default:
		return provider
	}
}
