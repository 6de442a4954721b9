// Package generator holds the generation-service collaborators: clients that
// turn a natural-language request plus the current script into a raw code
// fragment. All failures here are round failures; the orchestrator never
// retries them.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client is the abstract generation service. Implementations may block for
// tens of seconds; callers control cancellation through ctx.
type Client interface {
	// Generate returns the raw generated text for one round. previous is
	// the full script of the last successful round, empty on the first.
	Generate(ctx context.Context, previous, request string) (string, error)

	// Name identifies the provider in logs and round records.
	Name() string
}

// ErrEmptyResponse is returned when the provider answers successfully but with
// no usable content.
var ErrEmptyResponse = errors.New("generation service returned empty content")

// Settings selects and configures a provider.
type Settings struct {
	Provider string // "deepseek", "gemini", or "mock"

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	GeminiAPIKey string
	GeminiModel  string
}

// New builds the Client selected by s.Provider.
func New(ctx context.Context, s Settings) (Client, error) {
	switch strings.ToLower(s.Provider) {
	case "deepseek":
		return NewDeepSeekClient(s.DeepSeekAPIKey, s.DeepSeekBaseURL, s.DeepSeekModel)
	case "gemini":
		return NewGeminiClient(ctx, s.GeminiAPIKey, s.GeminiModel)
	case "mock":
		return &MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", s.Provider)
	}
}
